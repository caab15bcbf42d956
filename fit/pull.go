package fit

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// PullTerm is a likelihood contribution computed from dial values alone.
type PullTerm interface {
	Name() string
	// Reconfigure reads the current values of the term's dials.
	Reconfigure(dials *DialStore)
	Likelihood() float64
	NDOF() int
}

// PullType selects how a pull term contributes.
type PullType int

const (
	// PullGaussian adds the quadratic form (θ-θ₀)ᵀ Σ⁻¹ (θ-θ₀).
	PullGaussian PullType = iota
	// PullNone tracks the dials but contributes nothing.
	PullNone
)

func (t PullType) String() string {
	if t == PullNone {
		return "NOPULL"
	}
	return "GAUSPULL"
}

// ParsePullType accepts GAUSPULL and NOPULL, case-insensitively. Empty means GAUSPULL.
func ParsePullType(s string) (PullType, error) {
	switch strings.ToUpper(s) {
	case "", "GAUSPULL":
		return PullGaussian, nil
	case "NOPULL":
		return PullNone, nil
	}
	return 0, fmt.Errorf("unknown pull type %q (want GAUSPULL or NOPULL)", s)
}

// GaussianPull penalizes the deviation of a dial subset from a target vector.
type GaussianPull struct {
	name      string
	typ       PullType
	dialNames []string
	positions []int
	target    *mat.VecDense
	invCov    *mat.SymDense

	theta      *mat.VecDense
	diff       *mat.VecDense
	likelihood float64
}

// NewGaussianPull builds an uncorrelated pull term from per-dial sigmas.
func NewGaussianPull(name string, typ PullType, dials *DialStore, names []string, target, sigmas []float64) (*GaussianPull, error) {
	if len(sigmas) != len(names) {
		return nil, fmt.Errorf("pull %q: %d sigmas for %d dials", name, len(sigmas), len(names))
	}
	inv := mat.NewSymDense(len(names), nil)
	for i, s := range sigmas {
		if s <= 0 {
			return nil, fmt.Errorf("pull %q: sigma of %q must be positive, got %g", name, names[i], s)
		}
		inv.SetSym(i, i, 1/(s*s))
	}
	return newPull(name, typ, dials, names, target, inv)
}

// NewGaussianPullCov builds a correlated pull term, inverting the covariance through its
// Cholesky factorization.
func NewGaussianPullCov(name string, typ PullType, dials *DialStore, names []string, target []float64, cov mat.Symmetric) (*GaussianPull, error) {
	if cov.SymmetricDim() != len(names) {
		return nil, fmt.Errorf("pull %q: covariance is %dx%d for %d dials", name, cov.SymmetricDim(), cov.SymmetricDim(), len(names))
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("pull %q: covariance is not positive definite", name)
	}
	inv := mat.NewSymDense(len(names), nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, fmt.Errorf("pull %q: inverting covariance: %w", name, err)
	}
	return newPull(name, typ, dials, names, target, inv)
}

func newPull(name string, typ PullType, dials *DialStore, names []string, target []float64, inv *mat.SymDense) (*GaussianPull, error) {
	if name == "" {
		return nil, fmt.Errorf("pull term name must not be empty")
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("pull %q: no dials", name)
	}
	if len(target) != len(names) {
		return nil, fmt.Errorf("pull %q: %d targets for %d dials", name, len(target), len(names))
	}
	p := &GaussianPull{
		name:      name,
		typ:       typ,
		dialNames: append([]string(nil), names...),
		positions: make([]int, len(names)),
		target:    mat.NewVecDense(len(target), append([]float64(nil), target...)),
		invCov:    inv,
		theta:     mat.NewVecDense(len(names), nil),
		diff:      mat.NewVecDense(len(names), nil),
	}
	for i, n := range names {
		pos, err := dials.Position(n)
		if err != nil {
			return nil, fmt.Errorf("pull %q: %w", name, err)
		}
		p.positions[i] = pos
	}
	return p, nil
}

// Name implements PullTerm.
func (p *GaussianPull) Name() string { return p.name }

// Type returns the pull type.
func (p *GaussianPull) Type() PullType { return p.typ }

// DialNames returns the pulled dials in order.
func (p *GaussianPull) DialNames() []string { return p.dialNames }

// Reconfigure implements PullTerm.
func (p *GaussianPull) Reconfigure(dials *DialStore) {
	for i, pos := range p.positions {
		p.theta.SetVec(i, dials.At(pos).Value)
	}
	if p.typ == PullNone {
		p.likelihood = 0
		return
	}
	p.diff.SubVec(p.theta, p.target)
	p.likelihood = mat.Inner(p.diff, p.invCov, p.diff)
}

// Likelihood implements PullTerm.
func (p *GaussianPull) Likelihood() float64 { return p.likelihood }

// NDOF is the number of pulled dials, or 0 for NOPULL terms.
func (p *GaussianPull) NDOF() int {
	if p.typ == PullNone {
		return 0
	}
	return len(p.positions)
}

// Values returns the dial values read by the last Reconfigure.
func (p *GaussianPull) Values() []float64 {
	return mat.Col(nil, 0, p.theta)
}
