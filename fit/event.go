package fit

// Event is one simulated interaction as read from an input source.
// Weight = RWWeight * InputWeight * CustomWeight once the engine has weighed it;
// a zero CustomWeight counts as 1.
type Event struct {
	Index        int
	Generator    string
	Mode         int
	Vars         map[string]float64
	InputWeight  float64
	CustomWeight float64
	RWWeight     float64
	Weight       float64
	// SplineBacked marks events from a spline-backed input; only those are weighed by
	// SplineCoeffs.
	SplineBacked bool
	SplineCoeffs []float64
}

// Var returns a named feature, or 0 when the event does not carry it.
func (ev *Event) Var(name string) float64 {
	return ev.Vars[name]
}

// Projection is the analysis-variable snapshot a sub-sample fills from.
// It is a value type: copying it is a complete clone.
type Projection struct {
	X    float64
	Y    float64
	Mode int
}

// InputSource enumerates events. Implementations must allow concurrent ReadEventAt
// calls when the engine runs with Parallelism > 1.
type InputSource interface {
	Name() string
	EventCount() int
	ReadEventAt(i int) (*Event, error)
	IsSplineBacked() bool
}

// SubSample is the unit that classifies and fills events. IsSignal and Project must not
// mutate the sub-sample; they may be called from several goroutines.
type SubSample interface {
	Name() string
	Input() InputSource
	IsSignal(ev *Event) bool
	Project(ev *Event) Projection
	// FillFromClassification is called during a Full Pass for every event of the
	// sub-sample's input, signal or not.
	FillFromClassification(p Projection, signal bool, weight float64)
	// FillFromCachedProjection is called during a Fast Pass for cached signal events only.
	FillFromCachedProjection(p Projection, weight float64)
}

// Sample is a top-level, named distribution that contributes to the likelihood.
type Sample interface {
	Name() string
	SubSamples() []SubSample
	Reset()
	ConvertToComparableForm()
	Renormalize()
	Likelihood() float64
	NDOF() int
}

// Bitset is a fixed-length bit vector, one bit per registered sub-sample.
type Bitset []uint64

// NewBitset allocates a bitset able to hold n bits.
func NewBitset(n int) Bitset {
	return make(Bitset, (n+63)/64)
}

// Set raises bit i.
func (b Bitset) Set(i int) { b[i/64] |= 1 << uint(i%64) }

// Test reports whether bit i is raised.
func (b Bitset) Test(i int) bool { return b[i/64]&(1<<uint(i%64)) != 0 }

// Any reports whether any bit is raised.
func (b Bitset) Any() bool {
	for _, w := range b {
		if w != 0 {
			return true
		}
	}
	return false
}

// Count returns the number of raised bits.
func (b Bitset) Count() int {
	n := 0
	for _, w := range b {
		for w != 0 {
			w &= w - 1
			n++
		}
	}
	return n
}
