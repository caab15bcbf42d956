// Package spline evaluates per-event response splines: each spline maps one dial value
// to a multiplicative weight through coefficients stored on the event.
// The SplineEvaluator interface is defined in fit/ (parent package).
package spline

import (
	"fmt"
	"math"

	"github.com/nuisfit/reweight/fit"
)

// Spline is one compiled response spline.
type Spline struct {
	name     string
	form     form
	knots    []float64
	position int // dial position in the store
	low      float64
	high     float64
	offset   int // first coefficient in the event's coefficient array
	n        int
}

// Name returns the spline name.
func (s *Spline) Name() string { return s.name }

// Form returns the functional form name.
func (s *Spline) Form() string { return s.form.name }

// Offset returns the index of the spline's first coefficient.
func (s *Spline) Offset() int { return s.offset }

// NCoeff returns the number of coefficients the spline reads.
func (s *Spline) NCoeff() int { return s.n }

// Clamp limits x to the spline's validity range.
func (s *Spline) Clamp(x float64) float64 {
	return math.Min(math.Max(x, s.low), s.high)
}

// Eval returns the response at dial value x for the spline's coefficient slice.
// Negative responses are floored at 0.
func (s *Spline) Eval(x float64, coeffs []float64) float64 {
	w := s.form.eval(s.Clamp(x), coeffs, s.knots)
	if w <= 0 || math.IsNaN(w) {
		return 0
	}
	return w
}

// Evaluator multiplies the responses of every spline. It reads dial values at call time and
// never mutates state, so Weight is safe for concurrent use.
type Evaluator struct {
	dials   *fit.DialStore
	splines []*Spline
	ncoeff  int
}

// NewEvaluator compiles specs in order; each spline's coefficients follow the previous one's
// in the event coefficient array.
func NewEvaluator(specs []fit.SplineSpec, dials *fit.DialStore) (*Evaluator, error) {
	if dials == nil {
		panic("spline.NewEvaluator: dials must not be nil")
	}
	e := &Evaluator{dials: dials}
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate spline %q", spec.Name)
		}
		seen[spec.Name] = true
		s, err := compile(spec, dials)
		if err != nil {
			return nil, err
		}
		s.offset = e.ncoeff
		e.ncoeff += s.n
		e.splines = append(e.splines, s)
	}
	return e, nil
}

func compile(spec fit.SplineSpec, dials *fit.DialStore) (*Spline, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("spline name must not be empty")
	}
	f, ok := forms[spec.Form]
	if !ok {
		return nil, fmt.Errorf("spline %q: unknown form %q (supported: %v)", spec.Name, spec.Form, Forms())
	}
	if len(spec.Dials) != 1 {
		return nil, fmt.Errorf("spline %q: form %s reads exactly one dial, got %d", spec.Name, spec.Form, len(spec.Dials))
	}
	pos, err := dials.Position(spec.Dials[0])
	if err != nil {
		return nil, fmt.Errorf("spline %q: %w", spec.Name, err)
	}
	if kind := dials.At(pos).ID.Kind; kind == fit.KindNorm {
		return nil, fmt.Errorf("spline %q: dial %q is a norm dial", spec.Name, spec.Dials[0])
	}
	s := &Spline{
		name:     spec.Name,
		form:     f,
		position: pos,
		low:      math.Inf(-1),
		high:     math.Inf(1),
	}
	if len(spec.Low) > 0 {
		s.low = spec.Low[0]
	}
	if len(spec.High) > 0 {
		s.high = spec.High[0]
	}
	if s.low > s.high {
		return nil, fmt.Errorf("spline %q: low %g above high %g", spec.Name, s.low, s.high)
	}
	if f.degree == 0 {
		if len(spec.Knots) < 2 {
			return nil, fmt.Errorf("spline %q: form %s needs at least two knots", spec.Name, spec.Form)
		}
		for i := 1; i < len(spec.Knots); i++ {
			if spec.Knots[i] <= spec.Knots[i-1] {
				return nil, fmt.Errorf("spline %q: knots must be strictly ascending", spec.Name)
			}
		}
		s.knots = append([]float64(nil), spec.Knots...)
		if len(spec.Low) == 0 {
			s.low = s.knots[0]
		}
		if len(spec.High) == 0 {
			s.high = s.knots[len(s.knots)-1]
		}
	}
	s.n = f.ncoeff(s.knots)
	return s, nil
}

// NCoeff implements fit.SplineEvaluator.
func (e *Evaluator) NCoeff() int { return e.ncoeff }

// Splines returns the compiled splines in coefficient order.
func (e *Evaluator) Splines() []*Spline { return e.splines }

// Weight implements fit.SplineEvaluator.
func (e *Evaluator) Weight(coeffs []float64) float64 {
	if len(coeffs) != e.ncoeff {
		panic(fmt.Sprintf("spline.Evaluator.Weight: %d coefficients, want %d", len(coeffs), e.ncoeff))
	}
	w := 1.0
	for _, s := range e.splines {
		w *= s.Eval(e.dials.At(s.position).Value, coeffs[s.offset:s.offset+s.n])
	}
	return w
}

// newEvaluator adapts NewEvaluator to fit.NewSplineEvaluatorFunc.
func newEvaluator(specs []fit.SplineSpec, dials *fit.DialStore) (fit.SplineEvaluator, error) {
	return NewEvaluator(specs, dials)
}
