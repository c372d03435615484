package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"

	MergeLineMerged  = "merged"
	MergeLineDropped = "dropped"
)

// CartMetrics records cart operation and merge telemetry.
type CartMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	mergeLines    *prometheus.CounterVec
	mergeAttempts *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart operations by name, path (guest|server) and outcome.",
	}, []string{"op", "path", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Duration of cart operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	mergeLines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_lines_total",
		Help: "Guest lines processed during merges.",
	}, []string{"result"})
	mergeAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_persist_attempts_total",
		Help: "Attempts to persist a merged cart.",
	}, []string{"outcome"})
	reg.MustRegister(operations, duration, mergeLines, mergeAttempts)
	return &CartMetrics{
		operations:    operations,
		duration:      duration,
		mergeLines:    mergeLines,
		mergeAttempts: mergeAttempts,
	}
}

// ObserveOperation counts a finished operation and records its latency.
func (c *CartMetrics) ObserveOperation(op, path, outcome string, elapsed time.Duration) {
	if c == nil || c.operations == nil {
		return
	}
	op = normalizeLabel(op)
	c.operations.WithLabelValues(op, normalizeLabel(path), normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// AddMergeLines counts guest lines that were merged or dropped.
func (c *CartMetrics) AddMergeLines(result string, n int) {
	if c == nil || c.mergeLines == nil || n <= 0 {
		return
	}
	c.mergeLines.WithLabelValues(normalizeLabel(result)).Add(float64(n))
}

// IncMergePersistAttempt counts one persist attempt for a merged cart.
func (c *CartMetrics) IncMergePersistAttempt(outcome string) {
	if c == nil || c.mergeAttempts == nil {
		return
	}
	c.mergeAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
