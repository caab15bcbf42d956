// register.go wires the spline evaluator into the fit package's registration variable
// (NewSplineEvaluatorFunc). This init() runs when any package imports fit/spline, breaking
// the import cycle between fit/ (interface owner) and fit/spline/ (implementation).
package spline

import "github.com/nuisfit/reweight/fit"

func init() {
	fit.NewSplineEvaluatorFunc = newEvaluator
}
