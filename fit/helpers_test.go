package fit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nuisfit/reweight/fit"
	"github.com/nuisfit/reweight/fit/input"
	"github.com/nuisfit/reweight/fit/reweight"
	"github.com/nuisfit/reweight/fit/sample"
)

// session is a complete fit setup over two generated inputs: a plain one weighed by analytic
// backends and a spline-backed one.
//
// Dial vector layout: [ma, mode1_scale, res_resp, ccqe_norm], followed by any extra norm
// dials passed to newSession.
type session struct {
	dials   *fit.DialStore
	weights *fit.WeightEngine
	samples []fit.Sample
	pulls   []fit.PullTerm
	ccqe    *sample.Binned1D
	res     *sample.Binned1D
	joint   *sample.Joint
}

var nominal = []float64{0, 1, 0, 1}

func q2Edges() []float64 {
	return []float64{0, 0.25, 0.5, 0.75, 1, 1.25, 1.5, 2}
}

func q2Data() []float64 {
	return []float64{30, 25, 20, 15, 10, 8, 6}
}

func newSession(t *testing.T, extraNorms ...string) *session {
	t.Helper()
	s := &session{dials: fit.NewDialStore()}
	for _, reg := range []struct {
		name string
		kind fit.DialKind
		v    float64
	}{
		{"ma", fit.KindSpline, 0},
		{"mode1_scale", fit.KindModeNorm, 1},
		{"res_resp", fit.KindResponse, 0},
		{"ccqe_norm", fit.KindNorm, 1},
	} {
		_, err := s.dials.Register(reg.name, reg.kind, reg.v)
		require.NoError(t, err)
	}
	for _, name := range extraNorms {
		_, err := s.dials.Register(name, fit.KindNorm, 1)
		require.NoError(t, err)
	}

	mc, err := input.Generate(input.GenerateConfig{Name: "mc", Events: 400, Seed: 11, WeightJitter: 0.05})
	require.NoError(t, err)
	spl, err := input.Generate(input.GenerateConfig{Name: "spl", Events: 300, Seed: 12, Modes: []int{1, 2}, SplineForm: "1Dpol2"})
	require.NoError(t, err)

	s.weights = fit.NewWeightEngine(s.dials)
	require.NoError(t, s.weights.SetSplines([]fit.SplineSpec{{
		Name: "ma_resp", Form: "1Dpol2", Dials: []string{"ma"}, Low: []float64{-3}, High: []float64{3},
	}}))
	norm, err := reweight.NewModeNorm(s.dials, nil, []reweight.Term{{Dial: "mode1_scale", Modes: []int{1}}})
	require.NoError(t, err)
	resp, err := reweight.NewResponse(s.dials, nil, []reweight.Term{{Dial: "res_resp", Modes: []int{11}, Fraction: 0.5}})
	require.NoError(t, err)
	require.NoError(t, s.weights.AddBackend(norm))
	require.NoError(t, s.weights.AddBackend(resp))

	s.ccqe = s.binned(t, "ccqe", mc, 1, sample.ChiSquareDiag)
	s.res = s.binned(t, "res", mc, 11, sample.Poisson)
	s.joint, err = sample.NewJoint("spl_joint", []*sample.Binned1D{
		s.binned(t, "spl_ccqe", spl, 1, sample.ChiSquareDiag),
		s.binned(t, "spl_mec", spl, 2, sample.ChiSquareDiag),
	})
	require.NoError(t, err)
	s.samples = []fit.Sample{s.ccqe, s.res, s.joint}

	pull, err := fit.NewGaussianPull("ma_pull", fit.PullGaussian, s.dials, []string{"ma"}, []float64{0}, []float64{1})
	require.NoError(t, err)
	s.pulls = []fit.PullTerm{pull}
	return s
}

func (s *session) binned(t *testing.T, name string, in fit.InputSource, mode int, stat sample.Statistic) *sample.Binned1D {
	t.Helper()
	b, err := sample.NewBinned1D(sample.Config{
		Name:      name,
		Input:     in,
		Selection: sample.Selection{XVar: "q2", Modes: []int{mode}},
		Edges:     q2Edges(),
		Data:      q2Data(),
		Statistic: stat,
	}, s.dials)
	require.NoError(t, err)
	return b
}

func (s *session) engine(t *testing.T, cfg fit.Config) *fit.Engine {
	t.Helper()
	e, err := fit.NewEngine(cfg, s.weights, s.samples, s.pulls, nil)
	require.NoError(t, err)
	return e
}

func cachingConfig() fit.Config {
	cfg := fit.DefaultConfig()
	cfg.SignalReconfigures = true
	return cfg
}

// trajectory is a sequence of dial vectors moving every kind of dial.
var trajectory = [][]float64{
	{0, 1, 0, 1},
	{0.5, 1, 0, 1},
	{0.5, 1.2, 0, 1},
	{0.5, 1.2, -0.4, 1},
	{0.5, 1.2, -0.4, 0.9},
	{-1.5, 0.8, 0.3, 1.1},
	{4, 0.8, 0.3, 1.1}, // ma beyond its clamp
}

// fillAll wraps a binned sample so that every event of its input is filled during a Full
// Pass, signal or not. Such a sample cannot be replayed from the signal cache.
type fillAll struct {
	*sample.Binned1D
}

func (f fillAll) SubSamples() []fit.SubSample { return []fit.SubSample{f} }

func (f fillAll) FillFromClassification(p fit.Projection, _ bool, weight float64) {
	f.Fill(p.X, weight)
}
