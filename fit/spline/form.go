package spline

import (
	"fmt"
	"math"
	"sort"
)

// form is one functional shape of a single-dial response.
type form struct {
	name string
	// ncoeff returns the coefficient count for a spline with the given knots.
	ncoeff func(knots []float64) int
	// eval returns the raw (unfloored) response at the clamped dial value x.
	eval func(x float64, c, knots []float64) float64
	// constant forms carry their own zeroth-order term; the others are 1 + Σ cᵢxⁱ.
	constant bool
	// degree of the polynomial, 0 for knot-based forms.
	degree int
}

func fixed(n int) func([]float64) int {
	return func([]float64) int { return n }
}

// polyNoConstant evaluates 1 + c₀x + c₁x² + … + c_{n-1}xⁿ.
func polyNoConstant(x float64, c []float64) float64 {
	w, p := 1.0, 1.0
	for _, ci := range c {
		p *= x
		w += ci * p
	}
	return w
}

// polyConstant evaluates c₀ + c₁x + … + c_{n-1}x^{n-1}.
func polyConstant(x float64, c []float64) float64 {
	w, p := 0.0, 1.0
	for _, ci := range c {
		w += ci * p
		p *= x
	}
	return w
}

// cubicSegments evaluates a piecewise cubic with four coefficients per knot. Values at or
// beyond the last knot use the last knot's segment.
func cubicSegments(x float64, c, knots []float64) float64 {
	seg := sort.Search(len(knots), func(i int) bool { return knots[i] > x }) - 1
	if seg < 0 {
		seg = 0
	}
	dx := x - knots[seg]
	k := 4 * seg
	w := c[k] + dx*(c[k+1]+dx*(c[k+2]+dx*c[k+3]))
	if math.IsNaN(w) {
		return 0
	}
	return w
}

var forms = map[string]form{}

func register(f form) { forms[f.name] = f }

func init() {
	for n := 1; n <= 6; n++ {
		register(form{
			name:   fmt.Sprintf("1Dpol%d", n),
			ncoeff: fixed(n),
			eval:   func(x float64, c, _ []float64) float64 { return polyNoConstant(x, c) },
			degree: n,
		})
	}
	for n := 1; n <= 5; n++ {
		register(form{
			name:     fmt.Sprintf("1Dpol%dC", n),
			ncoeff:   fixed(n + 1),
			eval:     func(x float64, c, _ []float64) float64 { return polyConstant(x, c) },
			constant: true,
			degree:   n,
		})
	}
	// Fifth order with a lower threshold stored as the seventh coefficient.
	register(form{
		name:   "1Dpol5C_LX",
		ncoeff: fixed(7),
		eval: func(x float64, c, _ []float64) float64 {
			if x <= c[6]-4.0 {
				return 0
			}
			return polyConstant(x, c[:6])
		},
		constant: true,
		degree:   5,
	})
	for _, n := range []int{10, 25} {
		register(form{
			name:     fmt.Sprintf("1Dpol%d", n),
			ncoeff:   fixed(n),
			eval:     func(x float64, c, _ []float64) float64 { return polyConstant(x, c) },
			constant: true,
			degree:   n - 1,
		})
	}
	register(form{
		name:   "1DTSpline3",
		ncoeff: func(knots []float64) int { return 4 * len(knots) },
		eval:   cubicSegments,
	})
}

// Forms returns the supported form names, sorted.
func Forms() []string {
	names := make([]string, 0, len(forms))
	for n := range forms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
