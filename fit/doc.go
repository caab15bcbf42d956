// Package fit provides the reweighting and likelihood-evaluation engine used inside
// an iterative dial fit.
//
// # Reading Guide
//
// Start with these files to understand the evaluation loop:
//   - dial.go: DialStore, the registry of tunable dials and the change detector
//   - weight.go: WeightEngine, per-event weights from backends or response splines
//   - reconfigure.go: Scheduler, Full and Fast passes plus the one-time consistency check
//   - engine.go: Engine.Evaluate, the objective function handed to a minimizer
//
// # Architecture
//
// The fit package defines interfaces and owns the session state; implementations live
// in sub-packages:
//   - fit/spline/: polynomial response-spline evaluator
//   - fit/reweight/: analytic weight backends (mode normalisation, linear response)
//   - fit/sample/: binned measurements and joint composite samples
//   - fit/input/: event input sources and the synthetic generator
//   - fit/iteration/: per-evaluation iteration recording
//   - fit/card/: YAML fit cards that assemble a Session
//
// fit/spline registers its constructor via init() by setting NewSplineEvaluatorFunc.
//
// # Key Interfaces
//
//   - InputSource: event enumeration (count, read by index, spline-backed flag)
//   - SubSample: signal classification, projection and filling
//   - Sample: reset, conversion to comparable form, renormalisation, likelihood, NDOF
//   - WeightBackend: lazily reconfigured multiplicative event weight
//   - PullTerm: penalty on dial values
package fit
