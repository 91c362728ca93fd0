package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the intrusion detector.
type Metrics struct {
	Detections      *prometheus.CounterVec
	Blocks          *prometheus.CounterVec
	BlockedRequests prometheus.Counter
	StoreErrors     *prometheus.CounterVec
	BlockedIPs      prometheus.Gauge
	ScanDuration    prometheus.Histogram
	CleanupRuns     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Detections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_intrusion_detections_total",
			Help: "Requests matching an attack signature by category",
		}, []string{"category"}),
		Blocks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_intrusion_blocks_total",
			Help: "Addresses blocked by trigger",
		}, []string{"trigger"}),
		BlockedRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "bulwark_intrusion_blocked_requests_total",
			Help: "Requests rejected because the address is blocked",
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_intrusion_store_errors_total",
			Help: "Counter store errors swallowed by the detector, by operation",
		}, []string{"op"}),
		BlockedIPs: f.NewGauge(prometheus.GaugeOpts{
			Name: "bulwark_intrusion_blocked_ips",
			Help: "Addresses currently in the block index",
		}),
		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulwark_intrusion_scan_duration_seconds",
			Help:    "Time spent scanning request content",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		CleanupRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwark_intrusion_cleanup_runs_total",
			Help: "Block index cleanup runs by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementDetection(category string) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementBlock(trigger string) {
	if m == nil {
		return
	}
	m.Blocks.WithLabelValues(trigger).Inc()
}

func (m *Metrics) IncrementBlockedRequest() {
	if m == nil {
		return
	}
	m.BlockedRequests.Inc()
}

func (m *Metrics) IncrementStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SetBlockedIPs(n int) {
	if m == nil {
		return
	}
	m.BlockedIPs.Set(float64(n))
}

func (m *Metrics) ObserveScanDuration(seconds float64) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(seconds)
}

func (m *Metrics) IncrementCleanupRun(outcome string) {
	if m == nil {
		return
	}
	m.CleanupRuns.WithLabelValues(outcome).Inc()
}
