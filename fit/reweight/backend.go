// Package reweight provides analytic weight backends: per-mode normalizations and linear
// per-mode responses. The WeightBackend interface is defined in fit/ (parent package).
package reweight

import (
	"fmt"

	"github.com/nuisfit/reweight/fit"
)

// Term binds one dial to the interaction modes it acts on. Fraction is only read by the
// response backend.
type Term struct {
	Dial     string
	Modes    []int
	Fraction float64
}

type boundTerm struct {
	pos      int
	modes    []int
	fraction float64
}

// base holds the state shared by both backends: generator filter, pending flag and the
// per-mode factor table rebuilt on Reconfigure.
type base struct {
	kind         fit.DialKind
	generators   map[string]bool
	terms        []boundTerm
	factors      map[int]float64
	pending      bool
	reconfigures int
}

func newBase(kind fit.DialKind, dials *fit.DialStore, generators []string, terms []Term) (base, error) {
	b := base{kind: kind, factors: make(map[int]float64)}
	if len(generators) > 0 {
		b.generators = make(map[string]bool, len(generators))
		for _, g := range generators {
			b.generators[g] = true
		}
	}
	if len(terms) == 0 {
		return b, fmt.Errorf("%s backend: no dials", kind)
	}
	for _, t := range terms {
		pos, err := dials.Position(t.Dial)
		if err != nil {
			return b, fmt.Errorf("%s backend: %w", kind, err)
		}
		if got := dials.At(pos).ID.Kind; got != kind {
			return b, fmt.Errorf("%s backend: dial %q has kind %s", kind, t.Dial, got)
		}
		if len(t.Modes) == 0 {
			return b, fmt.Errorf("%s backend: dial %q lists no modes", kind, t.Dial)
		}
		b.terms = append(b.terms, boundTerm{pos: pos, modes: append([]int(nil), t.Modes...), fraction: t.Fraction})
	}
	return b, nil
}

func (b *base) Kind() fit.DialKind { return b.kind }

func (b *base) Applies(ev *fit.Event) bool {
	return b.generators == nil || b.generators[ev.Generator]
}

func (b *base) NeedsReconfigure() bool { return b.pending }

func (b *base) MarkPending() { b.pending = true }

// Reconfigures returns how many times the factor table was rebuilt.
func (b *base) Reconfigures() int { return b.reconfigures }

func (b *base) Weight(ev *fit.Event) float64 {
	if f, ok := b.factors[ev.Mode]; ok {
		return f
	}
	return 1.0
}

func (b *base) rebuild(dials *fit.DialStore, factor func(t boundTerm, value float64) float64) {
	clear(b.factors)
	for _, t := range b.terms {
		f := factor(t, dials.At(t.pos).Value)
		for _, m := range t.modes {
			if cur, ok := b.factors[m]; ok {
				b.factors[m] = cur * f
			} else {
				b.factors[m] = f
			}
		}
	}
	b.pending = false
	b.reconfigures++
}

// ModeNorm scales events of the listed modes by the dial value.
type ModeNorm struct{ base }

// NewModeNorm binds mode-normalization dials. Every dial must have kind KindModeNorm.
func NewModeNorm(dials *fit.DialStore, generators []string, terms []Term) (*ModeNorm, error) {
	b, err := newBase(fit.KindModeNorm, dials, generators, terms)
	if err != nil {
		return nil, err
	}
	return &ModeNorm{base: b}, nil
}

// Reconfigure implements fit.WeightBackend.
func (m *ModeNorm) Reconfigure(dials *fit.DialStore) {
	m.rebuild(dials, func(_ boundTerm, v float64) float64 { return v })
}

// Response scales events of the listed modes by 1 + value×fraction, floored at 0.
type Response struct{ base }

// NewResponse binds linear response dials. Every dial must have kind KindResponse.
func NewResponse(dials *fit.DialStore, generators []string, terms []Term) (*Response, error) {
	b, err := newBase(fit.KindResponse, dials, generators, terms)
	if err != nil {
		return nil, err
	}
	return &Response{base: b}, nil
}

// Reconfigure implements fit.WeightBackend.
func (r *Response) Reconfigure(dials *fit.DialStore) {
	r.rebuild(dials, func(t boundTerm, v float64) float64 {
		return max(0, 1+v*t.fraction)
	})
}

// validBackends maps accepted backend names.
var validBackends = map[string]bool{
	"mode_norm": true,
	"response":  true,
}

// IsValidBackend reports whether name is a recognized backend.
func IsValidBackend(name string) bool { return validBackends[name] }

// New creates a backend by name. Valid names are "mode_norm" and "response".
func New(name string, dials *fit.DialStore, generators []string, terms []Term) (fit.WeightBackend, error) {
	switch name {
	case "mode_norm":
		b, err := NewModeNorm(dials, generators, terms)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "response":
		b, err := NewResponse(dials, generators, terms)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown weight backend %q", name)
}
