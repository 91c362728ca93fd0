package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the fixed-window and token-bucket limiters.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	FailOpen        *prometheus.CounterVec
	CheckDuration   *prometheus.HistogramVec
	BucketsCorrupt  prometheus.Counter
	InvalidBuckets  prometheus.Counter
	UserLimitResets prometheus.Counter

	SweepRuns     *prometheus.CounterVec
	SweptKeys     prometheus.Counter
	SweepDuration prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_ratelimit_decisions_total",
			Help: "Rate limit decisions by check and outcome",
		}, []string{"check", "outcome"}),
		FailOpen: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_ratelimit_fail_open_total",
			Help: "Checks allowed because the counter store failed",
		}, []string{"check"}),
		CheckDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulwark_ratelimit_check_duration_seconds",
			Help:    "Latency of rate limit checks including store round trips",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"check"}),
		BucketsCorrupt: f.NewCounter(prometheus.CounterOpts{
			Name: "bulwark_ratelimit_bucket_corrupt_total",
			Help: "Token bucket records that could not be decoded and were reset",
		}),
		InvalidBuckets: f.NewCounter(prometheus.CounterOpts{
			Name: "bulwark_ratelimit_bucket_invalid_params_total",
			Help: "Token bucket checks skipped because of invalid parameters",
		}),
		UserLimitResets: f.NewCounter(prometheus.CounterOpts{
			Name: "bulwark_ratelimit_user_resets_total",
			Help: "Administrative resets of a user's counters",
		}),
		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_counter_sweep_runs_total",
			Help: "In-memory counter sweep runs by outcome",
		}, []string{"outcome"}),
		SweptKeys: f.NewCounter(prometheus.CounterOpts{
			Name: "bulwark_counter_swept_keys_total",
			Help: "Expired in-memory counter keys removed by the sweeper",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulwark_counter_sweep_duration_seconds",
			Help:    "Duration of in-memory counter sweeps",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveDecision(check string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.Decisions.WithLabelValues(check, outcome).Inc()
}

func (m *Metrics) IncrementFailOpen(check string) {
	if m == nil {
		return
	}
	m.FailOpen.WithLabelValues(check).Inc()
}

func (m *Metrics) ObserveCheckDuration(check string, seconds float64) {
	if m == nil {
		return
	}
	m.CheckDuration.WithLabelValues(check).Observe(seconds)
}

func (m *Metrics) IncrementCorruptBucket() {
	if m == nil {
		return
	}
	m.BucketsCorrupt.Inc()
}

func (m *Metrics) IncrementInvalidBucket() {
	if m == nil {
		return
	}
	m.InvalidBuckets.Inc()
}

func (m *Metrics) IncrementUserReset() {
	if m == nil {
		return
	}
	m.UserLimitResets.Inc()
}

func (m *Metrics) ObserveSweep(outcome string, removed int, seconds float64) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(outcome).Inc()
	m.SweptKeys.Add(float64(removed))
	m.SweepDuration.Observe(seconds)
}
