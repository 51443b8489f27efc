package executor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for command execution.
type Metrics struct {
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	BlockedTotal      prometheus.Counter
	RedactionsTotal   prometheus.Counter
	GapsTotal         *prometheus.CounterVec
	TruncatedTotal    prometheus.Counter
}

// NewMetrics registers execution metrics with the default registry once
// and returns the shared instance.
//
// Metrics:
//   - secretsh_executions_total{outcome}
//   - secretsh_execution_duration_seconds{outcome}
//   - secretsh_blocked_commands_total
//   - secretsh_redactions_total
//   - secretsh_redaction_gaps_total{category}
//   - secretsh_output_truncated_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ExecutionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "secretsh_executions_total",
					Help: "Total number of command executions by outcome",
				},
				[]string{"outcome"}, // "exited", "timeout", "spawn_failed", "canceled", "blocked"
			),

			ExecutionDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "secretsh_execution_duration_seconds",
					Help:    "Duration of command executions in seconds",
					Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
				},
				[]string{"outcome"},
			),

			BlockedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "secretsh_blocked_commands_total",
					Help: "Total number of commands rejected by the blocklist",
				},
			),

			RedactionsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "secretsh_redactions_total",
					Help: "Total number of redactions applied to command output",
				},
			),

			GapsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "secretsh_redaction_gaps_total",
					Help: "Total number of redaction gaps found by post-redaction verification",
				},
				[]string{"category"},
			),

			TruncatedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "secretsh_output_truncated_total",
					Help: "Total number of output streams truncated at the size cap",
				},
			),
		}
	})

	return globalMetrics
}

// RecordExecution records a finished execution.
func (m *Metrics) RecordExecution(outcome string, durationSeconds float64) {
	m.ExecutionsTotal.WithLabelValues(outcome).Inc()
	m.ExecutionDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordBlocked records a blocklist rejection.
func (m *Metrics) RecordBlocked() {
	m.BlockedTotal.Inc()
	m.ExecutionsTotal.WithLabelValues("blocked").Inc()
}

// RecordRedactions adds n redactions.
func (m *Metrics) RecordRedactions(n int) {
	if n > 0 {
		m.RedactionsTotal.Add(float64(n))
	}
}

// RecordGap records one verification gap.
func (m *Metrics) RecordGap(category string) {
	m.GapsTotal.WithLabelValues(category).Inc()
}

// RecordTruncated records a truncated stream.
func (m *Metrics) RecordTruncated() {
	m.TruncatedTotal.Inc()
}
