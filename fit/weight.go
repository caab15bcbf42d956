package fit

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// WeightBackend computes a multiplicative per-event weight from the dials of one kind.
// Reconfigure is expensive and must only run when NeedsReconfigure reports pending changes.
type WeightBackend interface {
	Kind() DialKind
	// Applies reports whether the backend weighs this event (typically by generator).
	Applies(ev *Event) bool
	NeedsReconfigure() bool
	MarkPending()
	Reconfigure(dials *DialStore)
	Weight(ev *Event) float64
}

// SplineSpec declares one response spline: its functional form, the dials it reads and
// the clamp range per dial. Knots are only read by knot-based forms.
type SplineSpec struct {
	Name  string
	Form  string
	Dials []string
	Low   []float64
	High  []float64
	Knots []float64
}

// SplineEvaluator turns an event's cached coefficients into a weight for the current dials.
type SplineEvaluator interface {
	// NCoeff is the number of coefficients each spline-backed event must carry.
	NCoeff() int
	Weight(coeffs []float64) float64
}

// NewSplineEvaluatorFunc is set by fit/spline's init(). Production code imports
// fit/spline directly (or via fit/card); tests of this package use a blank import.
var NewSplineEvaluatorFunc func(specs []SplineSpec, dials *DialStore) (SplineEvaluator, error)

// WeightEngine combines backend weights and spline responses into event weights.
type WeightEngine struct {
	dials    *DialStore
	backends []WeightBackend // ascending Kind
	spline   SplineEvaluator
	metrics  *Metrics
}

// NewWeightEngine creates a WeightEngine bound to a DialStore.
func NewWeightEngine(dials *DialStore) *WeightEngine {
	if dials == nil {
		panic("NewWeightEngine: dials must not be nil")
	}
	return &WeightEngine{dials: dials}
}

// AddBackend registers a backend. One backend per kind; norm and spline kinds are
// handled by samples and the spline evaluator and cannot have backends.
func (w *WeightEngine) AddBackend(b WeightBackend) error {
	if b.Kind() == KindNorm || b.Kind() == KindSpline {
		return fmt.Errorf("dial kind %s cannot have a weight backend", b.Kind())
	}
	for _, existing := range w.backends {
		if existing.Kind() == b.Kind() {
			return fmt.Errorf("weight backend for kind %s already registered", b.Kind())
		}
	}
	w.backends = append(w.backends, b)
	sort.SliceStable(w.backends, func(i, j int) bool { return w.backends[i].Kind() < w.backends[j].Kind() })
	b.MarkPending()
	return nil
}

// SetSplines builds the spline evaluator through NewSplineEvaluatorFunc.
func (w *WeightEngine) SetSplines(specs []SplineSpec) error {
	if NewSplineEvaluatorFunc == nil {
		return fmt.Errorf("no spline evaluator registered: import github.com/nuisfit/reweight/fit/spline")
	}
	ev, err := NewSplineEvaluatorFunc(specs, w.dials)
	if err != nil {
		return fmt.Errorf("building spline evaluator: %w", err)
	}
	w.spline = ev
	return nil
}

// SetSplineEvaluator installs a spline evaluator directly.
func (w *WeightEngine) SetSplineEvaluator(ev SplineEvaluator) { w.spline = ev }

// SplineEvaluator returns the installed evaluator, or nil.
func (w *WeightEngine) SplineEvaluator() SplineEvaluator { return w.spline }

// Dials returns the DialStore the engine reads.
func (w *WeightEngine) Dials() *DialStore { return w.dials }

func (w *WeightEngine) setMetrics(m *Metrics) { w.metrics = m }

// MarkChanged flags every backend whose kind has changed dials, then clears the flags.
func (w *WeightEngine) MarkChanged() {
	for _, kind := range w.dials.ChangedKinds() {
		for _, b := range w.backends {
			if b.Kind() == kind {
				b.MarkPending()
			}
		}
	}
	w.dials.ClearChanged()
}

// Prepare reconfigures every pending backend. After Prepare, CalcWeight does not mutate
// backend state and may be called concurrently.
func (w *WeightEngine) Prepare() {
	for _, b := range w.backends {
		if b.NeedsReconfigure() {
			w.reconfigure(b)
		}
	}
}

// ReconfigureAll forces every backend to reconfigure. Forcing a backend with nothing
// pending is harmless but wasteful and is reported as a warning.
func (w *WeightEngine) ReconfigureAll(reason string) {
	for _, b := range w.backends {
		if !b.NeedsReconfigure() {
			logrus.Warnf("[weights] reconfiguring %s backend with no pending dial changes (%s)", b.Kind(), reason)
			b.MarkPending()
		}
		w.reconfigure(b)
	}
}

func (w *WeightEngine) reconfigure(b WeightBackend) {
	b.Reconfigure(w.dials)
	w.metrics.backendReconfigured(b.Kind())
	logrus.Debugf("[weights] reconfigured %s backend", b.Kind())
}

// CalcWeight returns the reweight factor of an event for the current dial state.
// Events from spline-backed inputs are weighed by the spline evaluator alone.
func (w *WeightEngine) CalcWeight(ev *Event) float64 {
	if ev.SplineBacked {
		if w.spline == nil {
			return 1.0
		}
		return w.spline.Weight(ev.SplineCoeffs)
	}
	weight := 1.0
	for _, b := range w.backends {
		if !b.Applies(ev) {
			continue
		}
		if b.NeedsReconfigure() {
			w.reconfigure(b)
		}
		weight *= b.Weight(ev)
	}
	return weight
}

// EventWeight stores the reweight factor and the total weight on the event and returns
// the total weight. A zero CustomWeight is treated as unset (1.0).
func (w *WeightEngine) EventWeight(ev *Event) float64 {
	ev.RWWeight = w.CalcWeight(ev)
	custom := ev.CustomWeight
	if custom == 0 {
		custom = 1.0
	}
	ev.Weight = ev.RWWeight * ev.InputWeight * custom
	return ev.Weight
}
