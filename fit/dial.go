package fit

import (
	"fmt"
	"sort"
)

// DialKind identifies which weight calculator consumes a dial.
type DialKind int

const (
	// KindNorm dials scale a sample's filled distribution and never trigger a reweight.
	KindNorm DialKind = iota
	// KindSpline dials are consumed by the response-spline evaluator.
	KindSpline
	// KindModeNorm dials scale events of selected interaction modes.
	KindModeNorm
	// KindResponse dials drive linear per-mode responses.
	KindResponse
)

var dialKindNames = map[DialKind]string{
	KindNorm:     "norm",
	KindSpline:   "spline",
	KindModeNorm: "mode_norm",
	KindResponse: "response",
}

func (k DialKind) String() string {
	if s, ok := dialKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseDialKind converts a card string into a DialKind.
func ParseDialKind(s string) (DialKind, error) {
	for k, name := range dialKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown dial kind %q", s)
}

// DialID is the tagged identity of a dial: its kind plus an enum within that kind.
type DialID struct {
	Kind       DialKind
	WithinKind int
}

func (id DialID) String() string {
	return fmt.Sprintf("%s/%d", id.Kind, id.WithinKind)
}

// Dial is one tunable parameter.
type Dial struct {
	ID      DialID
	Index   int // registration order, also the position in parameter vectors
	Name    string
	Value   float64
	Changed bool // set by ApplyVector for non-norm dials whose value moved
}

// DialStore owns the value and change state of every registered dial.
//
// Thread-safety: NOT thread-safe. Reads are safe while no ApplyVector is in flight.
type DialStore struct {
	dials   []Dial
	byName  map[string]int
	byID    map[DialID]int
	perKind map[DialKind]int
	sealed  bool
}

// NewDialStore creates an empty DialStore.
func NewDialStore() *DialStore {
	return &DialStore{
		byName:  make(map[string]int),
		byID:    make(map[DialID]int),
		perKind: make(map[DialKind]int),
	}
}

// Register adds a dial with a starting value and returns its identity.
func (s *DialStore) Register(name string, kind DialKind, start float64) (DialID, error) {
	if s.sealed {
		return DialID{}, fmt.Errorf("cannot register dial %q: fit already started", name)
	}
	if name == "" {
		return DialID{}, fmt.Errorf("dial name must not be empty")
	}
	if _, exists := s.byName[name]; exists {
		return DialID{}, fmt.Errorf("dial %q already registered", name)
	}
	id := DialID{Kind: kind, WithinKind: s.perKind[kind]}
	s.perKind[kind]++
	idx := len(s.dials)
	s.dials = append(s.dials, Dial{ID: id, Index: idx, Name: name, Value: start})
	s.byName[name] = idx
	s.byID[id] = idx
	return id, nil
}

// Seal rejects further registrations. Called once the engine is built.
func (s *DialStore) Seal() { s.sealed = true }

// Len returns the number of registered dials.
func (s *DialStore) Len() int { return len(s.dials) }

// ApplyVector stores x as the current dial values and reports whether any non-norm dial
// changed. Norm dials are overwritten without raising their changed flag.
func (s *DialStore) ApplyVector(x []float64) (bool, error) {
	if len(x) != len(s.dials) {
		return false, fmt.Errorf("%w: got %d values for %d dials", ErrVectorLength, len(x), len(s.dials))
	}
	changed := false
	for i := range s.dials {
		d := &s.dials[i]
		if d.ID.Kind != KindNorm && d.Value != x[i] {
			d.Changed = true
			changed = true
		}
		d.Value = x[i]
	}
	return changed, nil
}

// Values returns a copy of the current values in registration order.
func (s *DialStore) Values() []float64 {
	out := make([]float64, len(s.dials))
	for i, d := range s.dials {
		out[i] = d.Value
	}
	return out
}

// Names returns dial names in registration order.
func (s *DialStore) Names() []string {
	out := make([]string, len(s.dials))
	for i, d := range s.dials {
		out[i] = d.Name
	}
	return out
}

// Dials returns a copy of every dial in registration order.
func (s *DialStore) Dials() []Dial {
	out := make([]Dial, len(s.dials))
	copy(out, s.dials)
	return out
}

// Position returns the registration index of the named dial.
func (s *DialStore) Position(name string) (int, error) {
	idx, ok := s.byName[name]
	if !ok {
		return -1, fmt.Errorf("%w: no dial named %q", ErrDialNotRegistered, name)
	}
	return idx, nil
}

// PositionOf returns the registration index of the dial with the given identity.
func (s *DialStore) PositionOf(id DialID) (int, error) {
	idx, ok := s.byID[id]
	if !ok {
		return -1, fmt.Errorf("%w: no dial with id %s", ErrDialNotRegistered, id)
	}
	return idx, nil
}

// Has reports whether a dial with this name is registered.
func (s *DialStore) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Value returns the current value of the named dial.
func (s *DialStore) Value(name string) (float64, error) {
	idx, err := s.Position(name)
	if err != nil {
		return 0, err
	}
	return s.dials[idx].Value, nil
}

// At returns the dial at a registration index. Panics when out of range.
func (s *DialStore) At(pos int) Dial { return s.dials[pos] }

// Set assigns a single dial by name. Non-norm changes raise the changed flag.
func (s *DialStore) Set(name string, v float64) error {
	idx, err := s.Position(name)
	if err != nil {
		return err
	}
	d := &s.dials[idx]
	if d.ID.Kind != KindNorm && d.Value != v {
		d.Changed = true
	}
	d.Value = v
	return nil
}

// ChangedKinds returns the distinct kinds with a raised changed flag, ascending.
func (s *DialStore) ChangedKinds() []DialKind {
	seen := make(map[DialKind]bool)
	for _, d := range s.dials {
		if d.Changed {
			seen[d.ID.Kind] = true
		}
	}
	kinds := make([]DialKind, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// AnyChanged reports whether any dial carries a raised changed flag.
func (s *DialStore) AnyChanged() bool {
	for _, d := range s.dials {
		if d.Changed {
			return true
		}
	}
	return false
}

// ClearChanged lowers every changed flag.
func (s *DialStore) ClearChanged() {
	for i := range s.dials {
		s.dials[i].Changed = false
	}
}

// NormDialSuffix turns a sample name into the name of its normalization dial.
const NormDialSuffix = "_norm"

// NormDialName is the name of a sample's normalization dial.
func NormDialName(sample string) string { return sample + NormDialSuffix }

// NormDial returns the position of the "<sample>_norm" dial, or -1 when none is registered.
// A dial of that name with another kind is an error.
func (s *DialStore) NormDial(sample string) (int, error) {
	if sample == "" {
		return -1, nil
	}
	name := NormDialName(sample)
	idx, ok := s.byName[name]
	if !ok {
		return -1, nil
	}
	if k := s.dials[idx].ID.Kind; k != KindNorm {
		return -1, fmt.Errorf("dial %q is %s, want %s", name, k, KindNorm)
	}
	return idx, nil
}
