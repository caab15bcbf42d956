package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/optimize"

	"github.com/nuisfit/reweight/fit"
	"github.com/nuisfit/reweight/fit/iteration"
)

var (
	maxEvals     int     // Objective evaluation budget
	fitTolerance float64 // Convergence threshold on the best likelihood
)

// fitCmd minimizes the likelihood over every dial with Nelder-Mead
var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Minimize the likelihood of a fit card over its dials",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		s := loadSession()

		x0 := s.Start()
		if err := applyDialFlags(s.Dials, x0, dialFlags); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Starting fit over %d dials (max %d evaluations)", len(x0), maxEvals)

		result, err := minimize(s.Engine, x0, s.Steps(), maxEvals, fitTolerance)
		if err != nil {
			logrus.Warnf("minimizer stopped: %v", err)
		}
		if result == nil {
			logrus.Fatalf("fit produced no result")
		}
		logrus.Infof("Minimizer status: %v after %d evaluations", result.Status, result.Stats.FuncEvaluations)

		// Publishable output: move back to the best point and redo every event.
		if _, err := s.Engine.Evaluate(result.X); err != nil {
			logrus.Fatalf("evaluating best point: %v", err)
		}
		b, err := s.Engine.ReconfigureAllEvents()
		if err != nil {
			logrus.Fatalf("reconfiguring all events: %v", err)
		}
		for i, name := range s.Dials.Names() {
			logrus.Infof("  %-24s %12.6f", name, result.X[i])
		}
		printBreakdown(os.Stdout, b)
		logMetrics(s.Engine.Metrics())

		if rec := s.Engine.Recorder(); rec != nil {
			sum := iteration.Summarize(rec.Rows())
			logrus.Infof("Iterations: %d, best %.6f at iteration %d, last %.6f",
				sum.Count, sum.BestLikelihood, sum.BestIteration, sum.LastLikelihood)
		}
		if err := writeIterations(s.Engine.Recorder(), iterationsPath); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// minimize runs Nelder-Mead on the engine's objective from x0, with an initial simplex
// spanned by one step per dial.
func minimize(e *fit.Engine, x0, steps []float64, evals int, tol float64) (*optimize.Result, error) {
	f := e.Objective()
	n := len(x0)
	vertices := make([][]float64, n+1)
	values := make([]float64, n+1)
	vertices[0] = append([]float64(nil), x0...)
	values[0] = f(vertices[0])
	for i := 0; i < n; i++ {
		v := append([]float64(nil), x0...)
		v[i] += steps[i]
		vertices[i+1] = v
		values[i+1] = f(v)
	}
	problem := optimize.Problem{Func: f}
	settings := &optimize.Settings{
		FuncEvaluations: evals,
		Concurrent:      1,
		Converger: &optimize.FunctionConverge{
			Absolute:   tol,
			Iterations: 20 * (n + 1),
		},
	}
	method := &optimize.NelderMead{InitialVertices: vertices, InitialValues: values}
	return optimize.Minimize(problem, x0, settings, method)
}
