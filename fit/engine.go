package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/nuisfit/reweight/fit/iteration"
)

// Engine evaluates the likelihood of a dial vector. It owns the scheduler, the signal cache,
// the metrics and the optional iteration recorder of one fit session.
//
// Thread-safety: NOT thread-safe. Evaluate must not be called concurrently.
type Engine struct {
	cfg       Config
	dials     *DialStore
	weights   *WeightEngine
	samples   []Sample
	pulls     []PullTerm
	scheduler *Scheduler
	metrics   *Metrics
	recorder  *iteration.Recorder

	iter     int
	last     Breakdown
	lastPass PassKind
	err      error
}

// NewEngine validates the session and seals the dial store. recorder may be nil; when
// cfg.RecordIterations is set and no recorder is given, one is created.
func NewEngine(cfg Config, weights *WeightEngine, samples []Sample, pulls []PullTerm, recorder *iteration.Recorder) (*Engine, error) {
	if weights == nil {
		panic("NewEngine: weights must not be nil")
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples registered", ErrMalformedSample)
	}
	seen := make(map[string]bool, len(samples)+len(pulls))
	for _, s := range samples {
		if s.Name() == "" {
			return nil, fmt.Errorf("%w: sample with empty name", ErrMalformedSample)
		}
		if seen[s.Name()] {
			return nil, fmt.Errorf("%w: duplicate component name %q", ErrMalformedSample, s.Name())
		}
		seen[s.Name()] = true
	}
	for _, p := range pulls {
		if seen[p.Name()] {
			return nil, fmt.Errorf("%w: duplicate component name %q", ErrMalformedSample, p.Name())
		}
		seen[p.Name()] = true
	}

	scheduler, err := NewScheduler(cfg, weights, samples, pulls)
	if err != nil {
		return nil, err
	}
	for _, in := range scheduler.Inputs() {
		if in.IsSplineBacked() && weights.SplineEvaluator() == nil {
			return nil, fmt.Errorf("input %q is spline-backed but no splines are configured", in.Name())
		}
	}

	metrics := NewMetrics()
	weights.setMetrics(metrics)
	scheduler.setMetrics(metrics)
	weights.Dials().Seal()

	e := &Engine{
		cfg:       cfg,
		dials:     weights.Dials(),
		weights:   weights,
		samples:   samples,
		pulls:     pulls,
		scheduler: scheduler,
		metrics:   metrics,
		recorder:  recorder,
		lastPass:  PassNone,
	}
	if e.recorder == nil && cfg.RecordIterations {
		e.recorder = iteration.NewRecorder()
	}
	if e.recorder != nil {
		name := cfg.IterationName
		if name == "" {
			name = DefaultConfig().IterationName
		}
		e.recorder.Open(name, e.componentNames(), e.dials.Names())
	}
	logrus.Infof("[engine] %d dials, %d samples (%d sub-samples over %d inputs), %d pull terms, signal_reconfigures=%v",
		e.dials.Len(), len(samples), len(scheduler.SubSamples()), len(scheduler.Inputs()), len(pulls), cfg.SignalReconfigures)
	return e, nil
}

func (e *Engine) componentNames() []string {
	names := make([]string, 0, len(e.samples)+len(e.pulls))
	for _, s := range e.samples {
		names = append(names, s.Name())
	}
	for _, p := range e.pulls {
		names = append(names, p.Name())
	}
	return names
}

// Evaluate applies x to the dials, brings every sample up to date and returns the total
// likelihood. After a fatal error every call returns that error.
func (e *Engine) Evaluate(x []float64) (float64, error) {
	if e.err != nil {
		return 0, e.err
	}
	changed, err := e.dials.ApplyVector(x)
	if err != nil {
		return 0, e.abort(err)
	}
	// Set between evaluations raises flags that ApplyVector cannot see.
	changed = changed || e.dials.AnyChanged()
	b, err := e.update(changed, false)
	if err != nil {
		return 0, err
	}
	return b.Total, nil
}

func (e *Engine) update(changed, forceFull bool) (Breakdown, error) {
	e.weights.MarkChanged()
	for _, p := range e.pulls {
		p.Reconfigure(e.dials)
	}
	pass, err := e.scheduler.Reconfigure(changed, forceFull)
	if err != nil {
		return Breakdown{}, e.abort(err)
	}
	e.lastPass = pass

	b := Aggregate(e.samples, e.pulls)
	e.last = b
	if e.recorder != nil {
		pairs := make([]iteration.Pair, len(b.Components))
		for i, c := range b.Components {
			pairs[i] = iteration.Pair{Likelihood: c.Likelihood, NDOF: c.NDOF}
		}
		if err := e.recorder.AppendRow(e.iter, pairs, b.Total, b.NDOF, e.dials.Values()); err != nil {
			return Breakdown{}, e.abort(err)
		}
	}
	e.iter++
	e.metrics.evaluated(b.Total)
	return b, nil
}

func (e *Engine) abort(err error) error {
	if e.err == nil {
		if !errors.Is(err, ErrEngineAborted) {
			err = fmt.Errorf("%w: %w", ErrEngineAborted, err)
		}
		e.err = err
		logrus.Errorf("[engine] %v", err)
	}
	return e.err
}

// Objective adapts Evaluate to a plain objective function for generic minimizers. A fatal
// error is handed to Config.OnFatal and +Inf is returned.
func (e *Engine) Objective() func(x []float64) float64 {
	return func(x []float64) float64 {
		l, err := e.Evaluate(x)
		if err != nil {
			e.cfg.fatal(err)
			return math.Inf(1)
		}
		return l
	}
}

// ReconfigureAllEvents forces every weight backend to reconfigure and runs a Full Pass at the
// current dial values, for final publishable output.
func (e *Engine) ReconfigureAllEvents() (Breakdown, error) {
	if e.err != nil {
		return Breakdown{}, e.err
	}
	e.weights.ReconfigureAll("reconfigure all events")
	return e.update(true, true)
}

// Err returns the fatal error that aborted the engine, or nil.
func (e *Engine) Err() error { return e.err }

// Iterations returns the number of completed evaluations.
func (e *Engine) Iterations() int { return e.iter }

// LastPass returns the pass run by the most recent evaluation.
func (e *Engine) LastPass() PassKind { return e.lastPass }

// Breakdown returns the decomposition of the most recent evaluation.
func (e *Engine) Breakdown() Breakdown { return e.last }

// NDOF returns the total NDOF of the most recent evaluation.
func (e *Engine) NDOF() int { return e.last.NDOF }

// Dials returns the session's DialStore.
func (e *Engine) Dials() *DialStore { return e.dials }

// Samples returns the registered samples in declaration order.
func (e *Engine) Samples() []Sample { return e.samples }

// Scheduler returns the reconfiguration scheduler.
func (e *Engine) Scheduler() *Scheduler { return e.scheduler }

// Metrics returns the session metrics.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Recorder returns the iteration recorder, or nil when iterations are not recorded.
func (e *Engine) Recorder() *iteration.Recorder { return e.recorder }
