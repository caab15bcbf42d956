package card

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/nuisfit/reweight/fit"
	"github.com/nuisfit/reweight/fit/input"
	"github.com/nuisfit/reweight/fit/reweight"
	"github.com/nuisfit/reweight/fit/sample"
	_ "github.com/nuisfit/reweight/fit/spline" // registers the spline evaluator
)

// defaultStep is the minimizer step of a dial whose card leaves step unset.
const defaultStep = 0.1

// Session is an assembled fit: every collaborator the engine was built from, kept for
// inspection by callers.
type Session struct {
	Card    *Card
	Engine  *fit.Engine
	Dials   *fit.DialStore
	Weights *fit.WeightEngine
	Inputs  []*input.Memory // card order
	Samples []fit.Sample
	Pulls   []fit.PullTerm
}

// Build assembles the card with its own engine settings.
func (c *Card) Build() (*Session, error) {
	return c.BuildConfig(c.EngineConfig())
}

// BuildConfig assembles the card with explicit engine settings, so callers can install an
// OnFatal hook or override the caching mode.
func (c *Card) BuildConfig(cfg fit.Config) (*Session, error) {
	s := &Session{Card: c, Dials: fit.NewDialStore()}
	for _, d := range c.Dials {
		kind, err := fit.ParseDialKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("dial %q: %w", d.Name, err)
		}
		if _, err := s.Dials.Register(d.Name, kind, d.Start); err != nil {
			return nil, err
		}
	}

	s.Weights = fit.NewWeightEngine(s.Dials)
	if len(c.Splines) > 0 {
		specs := make([]fit.SplineSpec, len(c.Splines))
		for i, sp := range c.Splines {
			specs[i] = fit.SplineSpec{Name: sp.Name, Form: sp.Form, Dials: sp.Dials, Low: sp.Low, High: sp.High, Knots: sp.Knots}
		}
		if err := s.Weights.SetSplines(specs); err != nil {
			return nil, err
		}
	}
	for i, b := range c.Backends {
		terms := make([]reweight.Term, len(b.Terms))
		for j, t := range b.Terms {
			terms[j] = reweight.Term{Dial: t.Dial, Modes: t.Modes, Fraction: t.Fraction}
		}
		backend, err := reweight.New(b.Type, s.Dials, b.Generators, terms)
		if err != nil {
			return nil, fmt.Errorf("backends[%d]: %w", i, err)
		}
		if err := s.Weights.AddBackend(backend); err != nil {
			return nil, fmt.Errorf("backends[%d]: %w", i, err)
		}
	}

	byName := make(map[string]*input.Memory, len(c.Inputs))
	for _, in := range c.Inputs {
		m, err := c.loadInput(in)
		if err != nil {
			return nil, err
		}
		if m.IsSplineBacked() {
			ev := s.Weights.SplineEvaluator()
			if ev == nil {
				return nil, fmt.Errorf("input %q is spline-backed but the card declares no splines", in.Name)
			}
			if err := m.CheckCoefficients(ev.NCoeff()); err != nil {
				return nil, err
			}
		}
		byName[in.Name] = m
		s.Inputs = append(s.Inputs, m)
		logrus.Infof("[card] input %q: %d events (spline-backed=%v)", in.Name, m.EventCount(), m.IsSplineBacked())
	}

	for i := range c.Samples {
		sc := &c.Samples[i]
		smp, err := buildSample(sc, byName, s.Dials)
		if err != nil {
			return nil, err
		}
		s.Samples = append(s.Samples, smp)
	}

	for _, p := range c.Pulls {
		pull, err := buildPull(p, s.Dials)
		if err != nil {
			return nil, err
		}
		s.Pulls = append(s.Pulls, pull)
	}

	e, err := fit.NewEngine(cfg, s.Weights, s.Samples, s.Pulls, nil)
	if err != nil {
		return nil, err
	}
	s.Engine = e
	return s, nil
}

func (c *Card) loadInput(in InputCard) (*input.Memory, error) {
	if in.Generate != nil {
		g := in.Generate
		return input.Generate(input.GenerateConfig{
			Name:          in.Name,
			Events:        g.Events,
			Seed:          g.Seed,
			Generator:     g.Generator,
			Modes:         g.Modes,
			ModeFractions: g.ModeFractions,
			WeightJitter:  g.WeightJitter,
			SplineForm:    g.SplineForm,
			ScanPoints:    g.ScanPoints,
		})
	}
	path := in.File
	if !filepath.IsAbs(path) && c.dir != "" {
		path = filepath.Join(c.dir, path)
	}
	m, err := input.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", in.Name, err)
	}
	// The card name wins over the name stored in the file.
	return input.NewMemory(in.Name, m.Events(), m.IsSplineBacked()), nil
}

func buildSample(sc *SampleCard, inputs map[string]*input.Memory, dials *fit.DialStore) (fit.Sample, error) {
	if !sc.IsJoint() {
		return buildBinned(sc, inputs, dials)
	}
	parts := make([]*sample.Binned1D, len(sc.Parts))
	for i := range sc.Parts {
		b, err := buildBinned(&sc.Parts[i], inputs, dials)
		if err != nil {
			return nil, fmt.Errorf("joint sample %q: %w", sc.Name, err)
		}
		parts[i] = b
	}
	return sample.NewJoint(sc.Name, parts)
}

func buildBinned(sc *SampleCard, inputs map[string]*input.Memory, dials *fit.DialStore) (*sample.Binned1D, error) {
	in, ok := inputs[sc.Input]
	if !ok {
		return nil, fmt.Errorf("sample %q: unknown input %q", sc.Name, sc.Input)
	}
	stat, err := sample.ParseStatistic(sc.Statistic)
	if err != nil {
		return nil, fmt.Errorf("sample %q: %w", sc.Name, err)
	}
	cfg := sample.Config{
		Name:  sc.Name,
		Input: in,
		Selection: sample.Selection{
			XVar:       sc.X,
			YVar:       sc.Y,
			Modes:      sc.Modes,
			Generators: sc.Generators,
		},
		Edges:     sc.Edges,
		Data:      sc.Data,
		Errors:    sc.Errors,
		Mask:      sc.Mask,
		Statistic: stat,
		ShapeOnly: sc.ShapeOnly,
		Scale:     sc.Scale,
		NormSigma: sc.NormSigma,
	}
	for _, cc := range sc.Cuts {
		cut := sample.NewCut(cc.Var)
		if cc.Min != nil {
			cut.Min = *cc.Min
		}
		if cc.Max != nil {
			cut.Max = *cc.Max
		}
		cfg.Selection.Cuts = append(cfg.Selection.Cuts, cut)
	}
	if len(sc.Cov) > 0 {
		cov, err := symmetric(sc.Cov)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", sc.Name, err)
		}
		cfg.Cov = cov
	}
	return sample.NewBinned1D(cfg, dials)
}

func buildPull(p PullCard, dials *fit.DialStore) (fit.PullTerm, error) {
	typ, err := fit.ParsePullType(p.Type)
	if err != nil {
		return nil, fmt.Errorf("pull %q: %w", p.Name, err)
	}
	target := p.Target
	if target == nil {
		target = make([]float64, len(p.Dials))
	}
	if len(p.Cov) > 0 {
		cov, err := symmetric(p.Cov)
		if err != nil {
			return nil, fmt.Errorf("pull %q: %w", p.Name, err)
		}
		return fit.NewGaussianPullCov(p.Name, typ, dials, p.Dials, target, cov)
	}
	return fit.NewGaussianPull(p.Name, typ, dials, p.Dials, target, p.Sigmas)
}

// symmetric converts a row-major matrix from a card into a SymDense, rejecting ragged or
// asymmetric input.
func symmetric(rows [][]float64) (*mat.SymDense, error) {
	n := len(rows)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("covariance row %d has %d entries, want %d", i, len(row), n)
		}
	}
	sym := mat.NewSymDense(n, nil)
	for i, row := range rows {
		for j := i; j < n; j++ {
			if math.Abs(row[j]-rows[j][i]) > 1e-12*math.Max(1, math.Abs(row[j])) {
				return nil, fmt.Errorf("covariance is not symmetric at (%d, %d)", i, j)
			}
			sym.SetSym(i, j, row[j])
		}
	}
	return sym, nil
}

// Start returns the starting dial vector in registration order.
func (s *Session) Start() []float64 {
	x := make([]float64, len(s.Card.Dials))
	for i, d := range s.Card.Dials {
		x[i] = d.Start
	}
	return x
}

// Steps returns the initial minimizer step per dial.
func (s *Session) Steps() []float64 {
	steps := make([]float64, len(s.Card.Dials))
	for i, d := range s.Card.Dials {
		steps[i] = d.Step
		if steps[i] == 0 {
			steps[i] = defaultStep
		}
	}
	return steps
}
