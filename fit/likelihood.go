package fit

import "github.com/sirupsen/logrus"

// Component is one contributor to the aggregate likelihood.
type Component struct {
	Name       string
	Likelihood float64
	NDOF       int
	Pull       bool
}

// Breakdown is the decomposed result of one aggregation. Components appear in declaration
// order: samples first, then pull terms.
type Breakdown struct {
	Components []Component
	Total      float64
	NDOF       int
}

// Aggregate sums the likelihood and NDOF of every sample and pull term. The iteration order
// is the declaration order, so per-component logging is stable across runs; the totals do not
// depend on it.
func Aggregate(samples []Sample, pulls []PullTerm) Breakdown {
	b := Breakdown{Components: make([]Component, 0, len(samples)+len(pulls))}
	for _, s := range samples {
		b.add(Component{Name: s.Name(), Likelihood: s.Likelihood(), NDOF: s.NDOF()})
	}
	for _, p := range pulls {
		b.add(Component{Name: p.Name(), Likelihood: p.Likelihood(), NDOF: p.NDOF(), Pull: true})
	}
	logrus.Debugf("[likelihood] total=%.6g ndof=%d", b.Total, b.NDOF)
	return b
}

func (b *Breakdown) add(c Component) {
	logrus.Debugf("[likelihood] %-24s likelihood=%.6g ndof=%d", c.Name, c.Likelihood, c.NDOF)
	b.Components = append(b.Components, c)
	b.Total += c.Likelihood
	b.NDOF += c.NDOF
}

// Names returns the component names in order.
func (b Breakdown) Names() []string {
	out := make([]string, len(b.Components))
	for i, c := range b.Components {
		out[i] = c.Name
	}
	return out
}

// Component returns the named component.
func (b Breakdown) Component(name string) (Component, bool) {
	for _, c := range b.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}
