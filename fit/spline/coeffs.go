package spline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FitCoefficients least-squares fits a polynomial form to responses sampled at dial values
// and returns the coefficients in the order the form reads them. Knot-based and thresholded
// forms are not fittable this way.
func FitCoefficients(formName string, points, responses []float64) ([]float64, error) {
	f, ok := forms[formName]
	if !ok {
		return nil, fmt.Errorf("unknown form %q", formName)
	}
	if f.degree == 0 || formName == "1Dpol5C_LX" {
		return nil, fmt.Errorf("form %s cannot be fitted from points", formName)
	}
	if len(points) != len(responses) {
		return nil, fmt.Errorf("%d points for %d responses", len(points), len(responses))
	}
	ncols := f.ncoeff(nil)
	if len(points) < ncols {
		return nil, fmt.Errorf("form %s needs at least %d points, got %d", formName, ncols, len(points))
	}

	a := mat.NewDense(len(points), ncols, nil)
	b := mat.NewVecDense(len(points), nil)
	for j, x := range points {
		first := 0
		target := responses[j]
		if !f.constant {
			first = 1
			target -= 1
		}
		for i := 0; i < ncols; i++ {
			a.Set(j, i, math.Pow(x, float64(i+first)))
		}
		b.SetVec(j, target)
	}
	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("fitting %s: %w", formName, err)
	}
	return mat.Col(nil, 0, &c), nil
}
