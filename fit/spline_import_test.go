package fit_test

// Blank import triggers fit/spline's init(), which registers NewSplineEvaluatorFunc.
// This allows package fit's internal test files to configure splines without directly
// importing fit/spline (which would create an import cycle).
import _ "github.com/nuisfit/reweight/fit/spline"
