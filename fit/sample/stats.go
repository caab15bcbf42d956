package sample

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Statistic selects the likelihood a binned sample reports.
type Statistic int

const (
	// ChiSquareDiag is Σ ((data-mc)/err)² over unmasked bins.
	ChiSquareDiag Statistic = iota
	// ChiSquareCov is (d-m)ᵀ C⁻¹ (d-m) over unmasked bins.
	ChiSquareCov
	// Poisson is the event-rate likelihood -2 ln(L/L_sat).
	Poisson
)

var statisticNames = map[Statistic]string{
	ChiSquareDiag: "chi2",
	ChiSquareCov:  "chi2_cov",
	Poisson:       "poisson",
}

func (s Statistic) String() string { return statisticNames[s] }

// ParseStatistic converts a card string. Empty means chi2.
func ParseStatistic(name string) (Statistic, error) {
	if name == "" {
		return ChiSquareDiag, nil
	}
	for s, n := range statisticNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown statistic %q (want chi2, chi2_cov or poisson)", name)
}

// poissonFloor replaces non-positive predictions in the event-rate likelihood.
const poissonFloor = 1e-12

func chi2Diag(data, mc, errs []float64, mask []bool) float64 {
	var chi2 float64
	for i := range data {
		if mask[i] || errs[i] <= 0 {
			continue
		}
		r := (data[i] - mc[i]) / errs[i]
		chi2 += r * r
	}
	return chi2
}

// chi2Cov evaluates the quadratic form with an inverse covariance already reduced to the
// unmasked bins.
func chi2Cov(data, mc []float64, mask []bool, inv *mat.SymDense, diff *mat.VecDense) float64 {
	k := 0
	for i := range data {
		if mask[i] {
			continue
		}
		diff.SetVec(k, data[i]-mc[i])
		k++
	}
	return mat.Inner(diff, inv, diff)
}

func poisson(data, mc []float64, mask []bool) float64 {
	var l float64
	for i := range data {
		if mask[i] {
			continue
		}
		m := mc[i]
		if m <= 0 {
			m = poissonFloor
		}
		d := data[i]
		l += m - d
		if d > 0 {
			l += d * math.Log(d/m)
		}
	}
	return 2 * l
}

// reducedInverse drops masked rows and columns from cov and inverts the rest through its
// Cholesky factorization.
func reducedInverse(cov mat.Symmetric, mask []bool) (*mat.SymDense, error) {
	keep := make([]int, 0, len(mask))
	for i, m := range mask {
		if !m {
			keep = append(keep, i)
		}
	}
	sub := mat.NewSymDense(len(keep), nil)
	for a, i := range keep {
		for b := a; b < len(keep); b++ {
			sub.SetSym(a, b, cov.At(i, keep[b]))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sub); !ok {
		return nil, fmt.Errorf("covariance is not positive definite")
	}
	inv := mat.NewSymDense(len(keep), nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, fmt.Errorf("inverting covariance: %w", err)
	}
	return inv, nil
}
