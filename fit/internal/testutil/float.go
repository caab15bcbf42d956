// Package testutil provides assertion helpers shared by the fit/ test packages.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal fails the test when got differs from want by more than relTol relative
// to the larger magnitude. Two zeros always match.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertWithin fails the test when |want-got| > absTol. Use it for values expected near zero,
// where a relative tolerance is meaningless.
func AssertWithin(t *testing.T, name string, want, got, absTol float64) {
	t.Helper()
	if diff := math.Abs(want - got); diff > absTol || math.IsNaN(got) {
		t.Errorf("%s: got %v, want %v (|diff|=%v > %v)", name, got, want, diff, absTol)
	}
}

// AssertSliceEqual compares two float slices element-wise with AssertFloat64Equal.
func AssertSliceEqual(t *testing.T, name string, want, got []float64, relTol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Errorf("%s: length %d, want %d", name, len(got), len(want))
		return
	}
	for i := range want {
		AssertFloat64Equal(t, name, want[i], got[i], relTol)
	}
}
