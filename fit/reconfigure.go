package fit

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SchedulerState is the reconfiguration state of a Scheduler.
type SchedulerState int

const (
	// StateUninitialized: no pass has run yet; the next evaluation runs a Full Pass.
	StateUninitialized SchedulerState = iota
	// StateFullRequired: caching is off, so every dial change needs a Full Pass.
	StateFullRequired
	// StateFastEligible: the signal cache is populated and a Fast Pass may run.
	StateFastEligible
	// StateTerminal: a fatal error occurred; every further call returns it.
	StateTerminal
)

var stateNames = map[SchedulerState]string{
	StateUninitialized: "uninitialized",
	StateFullRequired:  "full-required",
	StateFastEligible:  "fast-eligible",
	StateTerminal:      "terminal",
}

func (s SchedulerState) String() string { return stateNames[s] }

// fullPassBlock bounds the number of events classified in parallel before the ordered merge.
const fullPassBlock = 4096

// Scheduler decides per evaluation between a Full Pass, a Fast Pass and a renormalization,
// and owns the signal event cache that connects the two passes.
type Scheduler struct {
	cfg     Config
	weights *WeightEngine
	samples []Sample
	pulls   []PullTerm
	metrics *Metrics

	subs        []SubSample
	inputs      []InputSource
	subsByInput [][]int // input index -> sub-sample indices in declaration order

	cache   *SignalEventCache
	state   SchedulerState
	checked bool
	fatal   error

	fastWeights []float64
}

// NewScheduler enumerates the sub-samples of every sample in declaration order and derives
// the distinct inputs from them in first-seen order.
func NewScheduler(cfg Config, weights *WeightEngine, samples []Sample, pulls []PullTerm) (*Scheduler, error) {
	if weights == nil {
		panic("NewScheduler: weights must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{cfg: cfg, weights: weights, samples: samples, pulls: pulls}
	inputIndex := map[InputSource]int{}
	for _, sample := range samples {
		subs := sample.SubSamples()
		if len(subs) == 0 {
			return nil, fmt.Errorf("sample %q: %w: no sub-samples", sample.Name(), ErrMalformedSample)
		}
		for _, sub := range subs {
			in := sub.Input()
			if in == nil {
				return nil, fmt.Errorf("sample %q sub-sample %q: %w: no input", sample.Name(), sub.Name(), ErrMalformedSample)
			}
			ii, ok := inputIndex[in]
			if !ok {
				ii = len(s.inputs)
				inputIndex[in] = ii
				s.inputs = append(s.inputs, in)
				s.subsByInput = append(s.subsByInput, nil)
			}
			s.subsByInput[ii] = append(s.subsByInput[ii], len(s.subs))
			s.subs = append(s.subs, sub)
		}
	}
	s.cache = NewSignalEventCache(len(s.subs))
	return s, nil
}

func (s *Scheduler) setMetrics(m *Metrics) { s.metrics = m }

// State returns the current scheduler state.
func (s *Scheduler) State() SchedulerState { return s.state }

// Cache returns the signal event cache.
func (s *Scheduler) Cache() *SignalEventCache { return s.cache }

// Inputs returns the distinct inputs in first-seen order.
func (s *Scheduler) Inputs() []InputSource { return s.inputs }

// SubSamples returns every sub-sample in declaration order.
func (s *Scheduler) SubSamples() []SubSample { return s.subs }

// Err returns the fatal error that made the scheduler terminal, or nil.
func (s *Scheduler) Err() error { return s.fatal }

// Reconfigure brings every sample up to date with the current dials and returns the pass
// it ran. dialChanged reports whether any non-norm dial changed since the last call.
func (s *Scheduler) Reconfigure(dialChanged, forceFull bool) (PassKind, error) {
	if s.state == StateTerminal {
		return PassNone, s.fatal
	}
	var (
		kind PassKind
		err  error
	)
	switch {
	case s.state == StateUninitialized || forceFull:
		kind, err = PassFull, s.runFull()
	case !dialChanged:
		kind = PassRenormalize
		s.renormalize()
	case s.cfg.SignalReconfigures && s.state == StateFastEligible:
		kind, err = s.runFast()
	default:
		kind, err = PassFull, s.runFull()
	}
	if err != nil {
		return kind, s.fail(err)
	}
	s.metrics.pass(kind)
	return kind, nil
}

func (s *Scheduler) fail(err error) error {
	s.state = StateTerminal
	s.fatal = fmt.Errorf("%w: %w", ErrEngineAborted, err)
	return s.fatal
}

// runFull runs a Full Pass, populates the cache when caching is enabled and runs the one-time
// consistency check after the first populating pass.
func (s *Scheduler) runFull() error {
	if err := s.FullPass(); err != nil {
		return err
	}
	if !s.cfg.SignalReconfigures {
		s.state = StateFullRequired
		return nil
	}
	s.state = StateFastEligible
	if s.checked {
		return nil
	}
	s.checked = true
	return s.checkConsistency()
}

// runFast runs a Fast Pass, or a Full Pass when the cache holds nothing to replay.
func (s *Scheduler) runFast() (PassKind, error) {
	if s.cache.Empty() {
		logrus.Warnf("[scheduler] signal cache is empty, falling back to a full reconfigure")
		s.metrics.fallback()
		return PassFull, s.runFull()
	}
	return PassFast, s.FastPass()
}

func (s *Scheduler) checkConsistency() error {
	full := Aggregate(s.samples, s.pulls).Total
	if err := s.FastPass(); err != nil {
		return err
	}
	fast := Aggregate(s.samples, s.pulls).Total
	if math.IsNaN(full) || math.IsNaN(fast) || math.Abs(full-fast) > s.cfg.ConsistencyTolerance {
		return &ConsistencyError{Full: full, Fast: fast, Tolerance: s.cfg.ConsistencyTolerance}
	}
	logrus.Infof("[scheduler] signal cache consistency check passed (full=%.6g fast=%.6g, %d cached events)",
		full, fast, s.cache.Len())
	return nil
}

func (s *Scheduler) resetSamples() {
	for _, sample := range s.samples {
		sample.Reset()
	}
}

func (s *Scheduler) convertSamples() {
	for _, sample := range s.samples {
		sample.ConvertToComparableForm()
	}
}

func (s *Scheduler) renormalize() {
	for _, sample := range s.samples {
		sample.Renormalize()
	}
}

// classified is the per-event result of the parallelizable part of a Full Pass.
type classified struct {
	weight float64
	signal []bool       // per sub-sample of the input
	proj   []Projection // per sub-sample of the input
	coeffs []float64
	input  float64
	custom float64
}

// FullPass re-reads every event of every input, recomputes its weight, asks each sub-sample
// on that input to classify and fill it, and rebuilds the signal cache when caching is on.
func (s *Scheduler) FullPass() error {
	caching := s.cfg.SignalReconfigures
	if caching {
		s.cache.Reset()
	}
	s.resetSamples()
	s.weights.Prepare()

	total := 0
	for ii, in := range s.inputs {
		n := in.EventCount()
		logrus.Debugf("[scheduler] full pass over input %q (%d events)", in.Name(), n)
		var err error
		if s.cfg.Parallelism > 1 {
			err = s.fullPassParallel(ii, n, caching)
		} else {
			err = s.fullPassSerial(ii, n, caching)
		}
		if err != nil {
			return err
		}
		total += n
	}
	if caching {
		s.cache.MarkPopulated(total)
		s.metrics.cacheSize(s.cache.Len())
		logrus.Debugf("[scheduler] cached %d of %d events as signal", s.cache.Len(), total)
	}
	s.convertSamples()
	return nil
}

func (s *Scheduler) fullPassSerial(ii, n int, caching bool) error {
	var c classified
	step := max(n/10, 1)
	for i := 0; i < n; i++ {
		if err := s.classify(ii, i, &c); err != nil {
			return err
		}
		s.merge(ii, i, &c, caching)
		if (i+1)%step == 0 {
			logrus.Debugf("[scheduler] input %q: %d/%d events", s.inputs[ii].Name(), i+1, n)
		}
	}
	return nil
}

// fullPassParallel classifies blocks of events with a worker pool and merges each block in
// ascending event order, so fills and cache appends match the serial pass exactly.
func (s *Scheduler) fullPassParallel(ii, n int, caching bool) error {
	block := make([]classified, fullPassBlock)
	for start := 0; start < n; start += fullPassBlock {
		end := min(start+fullPassBlock, n)
		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(s.cfg.Parallelism)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return s.classify(ii, i, &block[i-start])
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i := start; i < end; i++ {
			s.merge(ii, i, &block[i-start], caching)
		}
	}
	return nil
}

// classify reads and weighs one event and asks each sub-sample on its input whether it is
// signal. It touches no sample state.
func (s *Scheduler) classify(ii, i int, c *classified) error {
	ev, err := s.inputs[ii].ReadEventAt(i)
	if err != nil {
		return fmt.Errorf("reading event %d of input %q: %w", i, s.inputs[ii].Name(), err)
	}
	subs := s.subsByInput[ii]
	if cap(c.signal) < len(subs) {
		c.signal = make([]bool, len(subs))
		c.proj = make([]Projection, len(subs))
	}
	c.signal = c.signal[:len(subs)]
	c.proj = c.proj[:len(subs)]
	c.weight = s.weights.EventWeight(ev)
	c.coeffs = nil
	if ev.SplineBacked {
		c.coeffs = ev.SplineCoeffs
	}
	c.input = ev.InputWeight
	c.custom = ev.CustomWeight
	for k, si := range subs {
		sub := s.subs[si]
		c.proj[k] = sub.Project(ev)
		c.signal[k] = sub.IsSignal(ev)
	}
	return nil
}

func (s *Scheduler) merge(ii, i int, c *classified, caching bool) {
	subs := s.subsByInput[ii]
	var entry *SignalCacheEntry
	for k, si := range subs {
		s.subs[si].FillFromClassification(c.proj[k], c.signal[k], c.weight)
		if !caching || !c.signal[k] {
			continue
		}
		if entry == nil {
			entry = &SignalCacheEntry{Input: ii, Event: i, Signal: NewBitset(len(s.subs))}
		}
		entry.Signal.Set(si)
		entry.Projections = append(entry.Projections, c.proj[k])
	}
	if entry == nil {
		return
	}
	if s.inputs[ii].IsSplineBacked() && c.coeffs != nil {
		entry.SplineCoeffs = append([]float64(nil), c.coeffs...)
		entry.InputWeight = c.input
		entry.CustomWeight = c.custom
	}
	s.cache.Append(*entry)
}

// FastPass replays the signal cache: weights are recomputed for every cached event first,
// then each cached projection is filled into the sub-samples whose bit is raised.
func (s *Scheduler) FastPass() error {
	entries := s.cache.Entries()
	if cap(s.fastWeights) < len(entries) {
		s.fastWeights = make([]float64, len(entries))
	}
	weights := s.fastWeights[:len(entries)]

	s.weights.Prepare()
	for j := range entries {
		e := &entries[j]
		if e.SplineCoeffs != nil {
			ev := Event{
				Index:        e.Event,
				SplineBacked: true,
				SplineCoeffs: e.SplineCoeffs,
				InputWeight:  e.InputWeight,
				CustomWeight: e.CustomWeight,
			}
			weights[j] = s.weights.EventWeight(&ev)
			continue
		}
		ev, err := s.inputs[e.Input].ReadEventAt(e.Event)
		if err != nil {
			return fmt.Errorf("re-reading cached event %d of input %q: %w", e.Event, s.inputs[e.Input].Name(), err)
		}
		weights[j] = s.weights.EventWeight(ev)
	}

	s.resetSamples()
	for j := range entries {
		e := &entries[j]
		k := 0
		for si := range s.subs {
			if !e.Signal.Test(si) {
				continue
			}
			s.subs[si].FillFromCachedProjection(e.Projections[k], weights[j])
			k++
		}
	}
	s.convertSamples()
	return nil
}
