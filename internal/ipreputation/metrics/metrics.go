package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the IP reputation gate.
type Metrics struct {
	Decisions      *prometheus.CounterVec
	LookupFailures *prometheus.CounterVec
	LookupDuration prometheus.Histogram
	CacheErrors    *prometheus.CounterVec
	BreakerState   prometheus.Gauge
	Invalidations  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_ipreputation_decisions_total",
			Help: "Reputation gate decisions by source and outcome",
		}, []string{"source", "outcome"}),
		LookupFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_ipreputation_lookup_failures_total",
			Help: "Failed reputation lookups by reason",
		}, []string{"reason"}),
		LookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulwark_ipreputation_lookup_duration_seconds",
			Help:    "Latency of third-party reputation lookups",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		}),
		CacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_ipreputation_cache_errors_total",
			Help: "Verdict cache store errors by operation",
		}, []string{"op"}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "bulwark_ipreputation_breaker_state",
			Help: "Reputation lookup circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		Invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_ipreputation_invalidations_total",
			Help: "Verdict cache invalidations by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveDecision(source string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "blocked"
	}
	m.Decisions.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) IncrementLookupFailure(reason string) {
	if m == nil {
		return
	}
	m.LookupFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveLookupDuration(seconds float64) {
	if m == nil {
		return
	}
	m.LookupDuration.Observe(seconds)
}

func (m *Metrics) IncrementCacheError(op string) {
	if m == nil {
		return
	}
	m.CacheErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SetBreakerState(state float64) {
	if m == nil {
		return
	}
	m.BreakerState.Set(state)
}

func (m *Metrics) ObserveInvalidation(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	m.Invalidations.WithLabelValues(outcome).Inc()
}
