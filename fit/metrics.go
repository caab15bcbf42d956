package fit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// PassKind names the reconfiguration a Scheduler ran.
type PassKind string

const (
	PassNone        PassKind = "none"
	PassFull        PassKind = "full"
	PassFast        PassKind = "fast"
	PassRenormalize PassKind = "renormalize"
)

// Metrics holds the Prometheus instruments of one fit session.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Evaluations         prometheus.Counter
	Passes              *prometheus.CounterVec
	BackendReconfigures *prometheus.CounterVec
	CacheFallbacks      prometheus.Counter
	CachedEvents        prometheus.Gauge
	Likelihood          prometheus.Gauge
}

// NewMetrics creates and registers all metrics on a fresh per-session registry, so
// several sessions can live in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "reweight_evaluations_total",
			Help: "Number of objective function evaluations",
		}),
		Passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reweight_passes_total",
				Help: "Number of sample reconfigurations by pass kind",
			},
			[]string{"pass"},
		),
		BackendReconfigures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reweight_backend_reconfigures_total",
				Help: "Number of weight backend reconfigurations by dial kind",
			},
			[]string{"kind"},
		),
		CacheFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "reweight_cache_fallbacks_total",
			Help: "Fast passes that fell back to a full pass because the signal cache was empty",
		}),
		CachedEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reweight_cached_signal_events",
			Help: "Number of entries in the signal event cache",
		}),
		Likelihood: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reweight_likelihood",
			Help: "Most recent total likelihood",
		}),
	}
}

func (m *Metrics) evaluated(likelihood float64) {
	if m == nil {
		return
	}
	m.Evaluations.Inc()
	m.Likelihood.Set(likelihood)
}

func (m *Metrics) pass(kind PassKind) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) backendReconfigured(kind DialKind) {
	if m == nil {
		return
	}
	m.BackendReconfigures.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) fallback() {
	if m == nil {
		return
	}
	m.CacheFallbacks.Inc()
}

func (m *Metrics) cacheSize(n int) {
	if m == nil {
		return
	}
	m.CachedEvents.Set(float64(n))
}

// MetricsSnapshot is a plain copy of the counters, for logging.
type MetricsSnapshot struct {
	Evaluations         float64
	FullPasses          float64
	FastPasses          float64
	Renormalizations    float64
	BackendReconfigures float64
	CacheFallbacks      float64
}

// Snapshot reads the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	snap := MetricsSnapshot{
		Evaluations:      counterValue(m.Evaluations),
		FullPasses:       counterValue(m.Passes.WithLabelValues(string(PassFull))),
		FastPasses:       counterValue(m.Passes.WithLabelValues(string(PassFast))),
		Renormalizations: counterValue(m.Passes.WithLabelValues(string(PassRenormalize))),
		CacheFallbacks:   counterValue(m.CacheFallbacks),
	}
	for _, kind := range []DialKind{KindModeNorm, KindResponse} {
		snap.BackendReconfigures += counterValue(m.BackendReconfigures.WithLabelValues(kind.String()))
	}
	return snap
}

func counterValue(c prometheus.Counter) float64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil || out.Counter == nil {
		return 0
	}
	return out.Counter.GetValue()
}
