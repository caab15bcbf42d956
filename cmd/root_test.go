package cmd

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuisfit/reweight/fit"
	"github.com/nuisfit/reweight/fit/card"
	"github.com/nuisfit/reweight/fit/input"
	"github.com/nuisfit/reweight/fit/iteration"
)

const fitCard = `
engine: {signal_reconfigures: true, record_iterations: true}
dials:
  - {name: scale, kind: mode_norm, start: 0.6, step: 0.2}
backends:
  - type: mode_norm
    terms: [{dial: scale, modes: [1]}]
inputs:
  - name: mc
    generate: {events: 400, seed: 9, modes: [1]}
samples:
  - {name: all, input: mc, x: q2, edges: [0, 100], data: [400]}
`

func buildSession(t *testing.T, body string) *card.Session {
	t.Helper()
	c, err := card.Decode(strings.NewReader(body))
	require.NoError(t, err)
	s, err := c.Build()
	require.NoError(t, err)
	return s
}

func TestApplyDialFlags(t *testing.T) {
	s := buildSession(t, fitCard)
	x := s.Start()

	require.NoError(t, applyDialFlags(s.Dials, x, map[string]string{"scale": " 1.5"}))
	assert.Equal(t, []float64{1.5}, x)

	assert.ErrorIs(t, applyDialFlags(s.Dials, x, map[string]string{"nope": "1"}), fit.ErrDialNotRegistered)
	assert.ErrorContains(t, applyDialFlags(s.Dials, x, map[string]string{"scale": "abc"}), "invalid value")
}

func TestMinimize_FindsScaleMatchingData(t *testing.T) {
	// GIVEN a single mode-norm dial whose data equals the nominal event count
	s := buildSession(t, fitCard)

	// WHEN the minimizer starts away from the optimum
	result, err := minimize(s.Engine, s.Start(), s.Steps(), 500, 1e-9)

	// THEN it moves the scale close to one and improves on the start
	require.NoError(t, err)
	require.NotNil(t, result)
	first := s.Engine.Recorder().Rows()[0].TotalLikelihood
	assert.Less(t, result.F, first)
	assert.InDelta(t, 1.0, result.X[0], 0.05)
}

func TestWriteIterations_ByExtension(t *testing.T) {
	s := buildSession(t, fitCard)
	for _, x := range [][]float64{{0.6}, {0.8}, {1.0}} {
		_, err := s.Engine.Evaluate(x)
		require.NoError(t, err)
	}
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "iters.csv")
	require.NoError(t, writeIterations(s.Engine.Recorder(), csvPath))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 4, "header plus three rows")
	assert.True(t, strings.HasPrefix(lines[0], "iteration,all_likelihood,all_ndof"))

	err = writeIterations(s.Engine.Recorder(), filepath.Join(dir, "iters.txt"))
	assert.ErrorContains(t, err, "unknown extension")
	assert.NoError(t, writeIterations(nil, csvPath))
}

func TestWriteIterations_YAML(t *testing.T) {
	rec := iteration.NewRecorder()
	rec.Open("fit", []string{"a"}, []string{"x"})
	require.NoError(t, rec.AppendRow(0, []iteration.Pair{{Likelihood: 2, NDOF: 1}}, 2, 1, []float64{0.5}))
	path := filepath.Join(t.TempDir(), "iters.yaml")

	require.NoError(t, writeIterations(rec, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fit")
	assert.Equal(t, 0, rec.Pending())
}

func TestPrintBreakdown_MarksPulls(t *testing.T) {
	var buf bytes.Buffer
	printBreakdown(&buf, fit.Breakdown{
		Components: []fit.Component{{Name: "a", Likelihood: 1, NDOF: 2}, {Name: "p", Likelihood: 0.5, NDOF: 1, Pull: true}},
		Total:      1.5,
		NDOF:       3,
	})
	out := buf.String()
	assert.Contains(t, out, "p (pull)")
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "1.500000")
}

func TestGenerateCommand_WritesLoadableFile(t *testing.T) {
	// GIVEN a generate invocation
	out := filepath.Join(t.TempDir(), "events.yaml")
	rootCmd.SetArgs([]string{"generate", "--out", out, "--events", "50", "--seed", "7", "--modes", "1,2", "--log", "warn"})

	// WHEN it runs
	require.NoError(t, rootCmd.Execute())

	// THEN the file loads with the requested events
	m, err := input.LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 50, m.EventCount())
	for _, ev := range m.Events() {
		assert.Contains(t, []int{1, 2}, ev.Mode)
		assert.False(t, math.IsNaN(ev.Var("q2")))
	}
}
