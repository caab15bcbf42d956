package sample

import (
	"math"
	"slices"

	"github.com/nuisfit/reweight/fit"
)

// Cut keeps events whose variable lies in [Min, Max).
type Cut struct {
	Var string
	Min float64
	Max float64
}

// NewCut returns a cut with open bounds on both sides.
func NewCut(v string) Cut {
	return Cut{Var: v, Min: math.Inf(-1), Max: math.Inf(1)}
}

// Pass reports whether the event passes the cut.
func (c Cut) Pass(ev *fit.Event) bool {
	x := ev.Var(c.Var)
	return x >= c.Min && x < c.Max
}

// Selection decides signal membership and which variables an event projects onto.
type Selection struct {
	XVar       string
	YVar       string
	Modes      []int    // empty = every mode
	Generators []string // empty = every generator
	Cuts       []Cut
}

// IsSignal reports whether the event passes the mode, generator and kinematic cuts.
func (s Selection) IsSignal(ev *fit.Event) bool {
	if len(s.Modes) > 0 && !slices.Contains(s.Modes, ev.Mode) {
		return false
	}
	if len(s.Generators) > 0 && !slices.Contains(s.Generators, ev.Generator) {
		return false
	}
	for _, c := range s.Cuts {
		if !c.Pass(ev) {
			return false
		}
	}
	return true
}

// Project snapshots the analysis variables of an event.
func (s Selection) Project(ev *fit.Event) fit.Projection {
	p := fit.Projection{X: ev.Var(s.XVar), Mode: ev.Mode}
	if s.YVar != "" {
		p.Y = ev.Var(s.YVar)
	}
	return p
}
