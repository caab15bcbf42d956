package fit

import (
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.pass(PassFull)
	m.pass(PassFast)
	m.pass(PassFast)
	m.pass(PassRenormalize)
	m.fallback()
	m.backendReconfigured(KindModeNorm)
	m.backendReconfigured(KindResponse)
	m.evaluated(3.5)

	snap := m.Snapshot()
	assert.Equal(t, MetricsSnapshot{
		Evaluations:         1,
		FullPasses:          1,
		FastPasses:          2,
		Renormalizations:    1,
		BackendReconfigures: 2,
		CacheFallbacks:      1,
	}, snap)

	assert.Equal(t, 3.5, promtest.ToFloat64(m.Likelihood))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.BackendReconfigures.WithLabelValues("mode_norm")))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "reweight_likelihood")
	assert.Contains(t, names, "reweight_passes_total")
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.pass(PassFull)
		m.fallback()
		m.cacheSize(3)
		m.evaluated(1)
		m.backendReconfigured(KindModeNorm)
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestMetrics_CacheSizeGauge(t *testing.T) {
	m := NewMetrics()
	m.cacheSize(42)
	assert.Equal(t, 42.0, promtest.ToFloat64(m.CachedEvents))
}

func TestMetrics_SeparateSessions(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.pass(PassFull)

	assert.Equal(t, 1.0, a.Snapshot().FullPasses)
	assert.Equal(t, 0.0, b.Snapshot().FullPasses)
}
