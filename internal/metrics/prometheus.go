package metrics

import (
	"strconv"
	"sync"

	"github.com/arloliu/presplit/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use so that a
// collector which is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	splits          *prometheus.CounterVec
	moves           *prometheus.CounterVec
	movedDocuments  *prometheus.CounterVec
	balanceDuration *prometheus.HistogramVec
	presplitRuns    *prometheus.CounterVec
	presplitLatency prometheus.Histogram
	markersWritten  prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "presplit" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "presplit"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.splits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "balancer",
			Name:      "splits_total",
			Help:      "Split requests by result (split, boundary, error).",
		}, []string{"result"})

		p.moves = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "balancer",
			Name:      "moves_total",
			Help:      "Move requests by destination shard and result (moved, noop, error).",
		}, []string{"shard", "result"})

		p.movedDocuments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "balancer",
			Name:      "moved_documents_total",
			Help:      "Documents reported by chunk moves, by destination shard.",
		}, []string{"shard"})

		p.balanceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "balancer",
			Name:      "balance_duration_seconds",
			Help:      "Duration of balance range operations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms .. ~3.4m
		}, []string{"success"})

		p.presplitRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Presplit runs by result (balanced, skipped, error).",
		}, []string{"result"})

		p.presplitLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of presplit runs in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		})

		p.markersWritten = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "markers_written_total",
			Help:      "Idempotency markers written.",
		})

		p.reg.MustRegister(p.splits)
		p.reg.MustRegister(p.moves)
		p.reg.MustRegister(p.movedDocuments)
		p.reg.MustRegister(p.balanceDuration)
		p.reg.MustRegister(p.presplitRuns)
		p.reg.MustRegister(p.presplitLatency)
		p.reg.MustRegister(p.markersWritten)
	})
}

// BalancerMetrics implementation

// RecordSplit increments the split counter for result.
func (p *PrometheusCollector) RecordSplit(result string) {
	p.ensureRegistered()
	p.splits.WithLabelValues(result).Inc()
}

// RecordMove increments the move counter for shard and result.
func (p *PrometheusCollector) RecordMove(shard, result string) {
	p.ensureRegistered()
	p.moves.WithLabelValues(shard, result).Inc()
}

// RecordMovedDocuments adds count to the moved documents counter of shard.
func (p *PrometheusCollector) RecordMovedDocuments(shard string, count int64) {
	if count <= 0 {
		return
	}
	p.ensureRegistered()
	p.movedDocuments.WithLabelValues(shard).Add(float64(count))
}

// RecordBalanceDuration observes a balance operation duration.
func (p *PrometheusCollector) RecordBalanceDuration(duration float64, success bool) {
	p.ensureRegistered()
	p.balanceDuration.WithLabelValues(strconv.FormatBool(success)).Observe(duration)
}

// PresplitMetrics implementation

// RecordPresplit counts a presplit run and observes its duration.
func (p *PrometheusCollector) RecordPresplit(result string, duration float64) {
	p.ensureRegistered()
	p.presplitRuns.WithLabelValues(result).Inc()
	p.presplitLatency.Observe(duration)
}

// RecordMarkers adds count to the markers written counter.
func (p *PrometheusCollector) RecordMarkers(count int) {
	if count <= 0 {
		return
	}
	p.ensureRegistered()
	p.markersWritten.Add(float64(count))
}
