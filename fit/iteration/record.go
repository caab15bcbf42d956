// Package iteration records one row per objective evaluation of a fit: the per-component
// likelihoods and NDOF, the totals, and the dial vector.
// This package has no dependencies on fit/; it stores pure data types.
package iteration

// Schema names the columns of an iteration table.
type Schema struct {
	Name       string
	SessionID  string   // unique per Open, distinguishes re-opened tables in shared sinks
	Components []string // samples then pull terms, in declaration order
	Dials      []string // registration order
}

// Columns returns the flat column names: iteration, one likelihood/ndof pair per component,
// the totals, then one column per dial.
func (s Schema) Columns() []string {
	cols := make([]string, 0, 3+2*len(s.Components)+len(s.Dials))
	cols = append(cols, "iteration")
	for _, c := range s.Components {
		cols = append(cols, c+"_likelihood", c+"_ndof")
	}
	cols = append(cols, "total_likelihood", "total_ndof")
	cols = append(cols, s.Dials...)
	return cols
}

// Pair is the likelihood and NDOF of one component.
type Pair struct {
	Likelihood float64 `yaml:"likelihood"`
	NDOF       int     `yaml:"ndof"`
}

// Row is one evaluation. Rows are immutable once appended.
type Row struct {
	Iteration       int       `yaml:"iteration"`
	Components      []Pair    `yaml:"components"`
	TotalLikelihood float64   `yaml:"total_likelihood"`
	TotalNDOF       int       `yaml:"total_ndof"`
	Dials           []float64 `yaml:"dials"`
}

// Values flattens the row in Schema.Columns order.
func (r Row) Values() []float64 {
	out := make([]float64, 0, 3+2*len(r.Components)+len(r.Dials))
	out = append(out, float64(r.Iteration))
	for _, c := range r.Components {
		out = append(out, c.Likelihood, float64(c.NDOF))
	}
	out = append(out, r.TotalLikelihood, float64(r.TotalNDOF))
	out = append(out, r.Dials...)
	return out
}
