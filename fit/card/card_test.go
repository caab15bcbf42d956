package card

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuisfit/reweight/fit"
	"github.com/nuisfit/reweight/fit/input"
)

const testCard = `
engine:
  signal_reconfigures: true
  parallelism: 2
  record_iterations: true
dials:
  - {name: ma, kind: spline, start: 0, step: 0.2}
  - {name: mode1_scale, kind: mode_norm, start: 1}
  - {name: ccqe_norm, kind: norm, start: 1}
splines:
  - {name: ma_resp, form: 1Dpol2, dials: [ma], low: [-3], high: [3]}
backends:
  - type: mode_norm
    terms:
      - {dial: mode1_scale, modes: [1]}
inputs:
  - {name: mc, file: events.yaml}
  - name: spl
    generate: {events: 200, seed: 5, modes: [1, 2], spline_form: 1Dpol2}
samples:
  - name: ccqe
    input: mc
    x: q2
    modes: [1]
    cuts:
      - {var: enu, min: 0.1}
    edges: [0, 0.5, 1, 1.5, 2]
    data: [40, 25, 12, 6]
    norm_sigma: 0.2
  - name: spl_joint
    parts:
      - {name: spl_ccqe, input: spl, x: q2, modes: [1], edges: [0, 1, 2], data: [20, 8]}
      - name: spl_mec
        input: spl
        x: q2
        modes: [2]
        edges: [0, 1, 2]
        data: [15, 5]
        statistic: chi2_cov
        cov: [[15, 1], [1, 5]]
pulls:
  - {name: ma_pull, dials: [ma], target: [0], sigmas: [1]}
`

// writeCard writes the test card and its event file into a temp directory.
func writeCard(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	mc, err := input.Generate(input.GenerateConfig{Name: "stored_name", Events: 300, Seed: 3})
	require.NoError(t, err)
	require.NoError(t, input.WriteFile(filepath.Join(dir, "events.yaml"), mc))
	path := filepath.Join(dir, "card.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_BuildsEvaluableSession(t *testing.T) {
	// GIVEN a card with a file input, a generated spline-backed input and a joint sample
	c, err := Load(writeCard(t, testCard))
	require.NoError(t, err)

	// WHEN the session is built and evaluated at the start vector
	s, err := c.Build()
	require.NoError(t, err)
	l, err := s.Engine.Evaluate(s.Start())

	// THEN every component contributes and the card names the inputs
	require.NoError(t, err)
	assert.False(t, math.IsNaN(l))
	assert.Equal(t, []string{"ccqe", "spl_joint", "ma_pull"}, s.Engine.Breakdown().Names())
	assert.Equal(t, "mc", s.Inputs[0].Name())
	assert.True(t, s.Inputs[1].IsSplineBacked())
	assert.Equal(t, []float64{0, 1, 1}, s.Start())
	assert.Equal(t, []float64{0.2, defaultStep, defaultStep}, s.Steps())
	require.NotNil(t, s.Engine.Recorder())
	assert.Equal(t, 1, s.Engine.Recorder().Len())
}

func TestCard_EngineConfig_MergesDefaults(t *testing.T) {
	c, err := Decode(strings.NewReader(`
engine: {signal_reconfigures: true, consistency_tolerance: 0.001}
inputs: [{name: mc, generate: {events: 10}}]
samples: [{name: a, input: mc, x: q2, edges: [0, 1], data: [1]}]
`))
	require.NoError(t, err)

	cfg := c.EngineConfig()
	assert.True(t, cfg.SignalReconfigures)
	assert.Equal(t, 0.001, cfg.ConsistencyTolerance)
	assert.Equal(t, fit.DefaultConfig().Parallelism, cfg.Parallelism)
	assert.Equal(t, fit.DefaultConfig().IterationName, cfg.IterationName)
}

func TestDecode_UnknownField_Rejected(t *testing.T) {
	_, err := Decode(strings.NewReader("engine: {signal_reconfigure: true}\n"))
	assert.ErrorContains(t, err, "signal_reconfigure")
}

func TestCard_Validate_Errors(t *testing.T) {
	base := func() Card {
		return Card{
			Dials:   []DialCard{{Name: "ma", Kind: "spline"}, {Name: "scale", Kind: "mode_norm", Start: 1}},
			Inputs:  []InputCard{{Name: "mc", Generate: &GenerateCard{Events: 10}}},
			Samples: []SampleCard{{Name: "a", Input: "mc", X: "q2", Edges: []float64{0, 1}, Data: []float64{1}}},
		}
	}
	one := 1.0
	tests := []struct {
		name   string
		mutate func(c *Card)
		want   string
	}{
		{"unknown dial kind", func(c *Card) { c.Dials[0].Kind = "bogus" }, "unknown dial kind"},
		{"duplicate dial", func(c *Card) { c.Dials[1].Name = "ma" }, "duplicate dial"},
		{"spline on non-spline dial", func(c *Card) {
			c.Splines = []SplineCard{{Name: "s", Form: "1Dpol1", Dials: []string{"scale"}}}
		}, "want spline"},
		{"unknown backend", func(c *Card) {
			c.Backends = []BackendCard{{Type: "bogus", Terms: []TermCard{{Dial: "scale"}}}}
		}, "unknown backend type"},
		{"input without source", func(c *Card) { c.Inputs[0].Generate = nil }, "exactly one of file or generate"},
		{"unknown sample input", func(c *Card) { c.Samples[0].Input = "data" }, "unknown input"},
		{"data length", func(c *Card) { c.Samples[0].Data = []float64{1, 2} }, "2 data values for 1 bins"},
		{"cov statistic without cov", func(c *Card) { c.Samples[0].Statistic = "chi2_cov" }, "needs cov"},
		{"inverted cut", func(c *Card) { c.Samples[0].Cuts = []CutCard{{Var: "enu", Min: &one, Max: &one}} }, "must be below"},
		{"joint with one part", func(c *Card) {
			c.Samples[0] = SampleCard{Name: "j", Parts: []SampleCard{c.Samples[0]}}
		}, "at least 2 parts"},
		{"pull name clashes with sample", func(c *Card) {
			c.Pulls = []PullCard{{Name: "a", Dials: []string{"ma"}, Sigmas: []float64{1}}}
		}, "duplicate component"},
		{"pull without sigmas", func(c *Card) {
			c.Pulls = []PullCard{{Name: "p", Dials: []string{"ma"}}}
		}, "exactly one of sigmas or cov"},
		{"bad pull type", func(c *Card) {
			c.Pulls = []PullCard{{Name: "p", Type: "uniform", Dials: []string{"ma"}, Sigmas: []float64{1}}}
		}, "unknown pull type"},
		{"norm dial without sample", func(c *Card) {
			c.Dials = append(c.Dials, DialCard{Name: "b_norm", Kind: "norm", Start: 1})
		}, "matches no sample"},
		{"norm dial without suffix", func(c *Card) {
			c.Dials = append(c.Dials, DialCard{Name: "a_scale", Kind: "norm", Start: 1})
		}, "matches no sample"},
		{"sample norm name on other kind", func(c *Card) {
			c.Dials = append(c.Dials, DialCard{Name: "a_norm", Kind: "mode_norm", Start: 1})
		}, "has kind mode_norm"},
		{"bad tolerance", func(c *Card) {
			zero := 0.0
			c.Engine.ConsistencyTolerance = &zero
		}, "engine"},
	}
	c := base()
	require.NoError(t, c.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestCard_Validate_UnregisteredDial(t *testing.T) {
	c := Card{
		Inputs:  []InputCard{{Name: "mc", Generate: &GenerateCard{Events: 10}}},
		Samples: []SampleCard{{Name: "a", Input: "mc", X: "q2", Edges: []float64{0, 1}, Data: []float64{1}}},
		Pulls:   []PullCard{{Name: "p", Dials: []string{"ma"}, Sigmas: []float64{1}}},
	}
	assert.True(t, errors.Is(c.Validate(), fit.ErrDialNotRegistered))
}

func TestBuild_SplineBackedInputWithoutSplines_Fails(t *testing.T) {
	c, err := Decode(strings.NewReader(`
inputs: [{name: spl, generate: {events: 10, spline_form: 1Dpol2}}]
samples: [{name: a, input: spl, x: q2, edges: [0, 1], data: [1]}]
`))
	require.NoError(t, err)

	_, err = c.Build()
	assert.ErrorContains(t, err, "declares no splines")
}

func TestSymmetric(t *testing.T) {
	m, err := symmetric([][]float64{{2, 1}, {1, 3}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.At(1, 0))

	_, err = symmetric([][]float64{{2, 1}, {0, 3}})
	assert.ErrorContains(t, err, "not symmetric")

	_, err = symmetric([][]float64{{2, 1}, {1}})
	assert.ErrorContains(t, err, "row 1")
}
