// Package metrics holds the Prometheus collectors shared across the autodialer.
// Collectors are registered with the default registry via promauto and
// served by the HTTP server at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autodialer"

var (
	// callsTotal counts finished make-call operations.
	// Labels: outcome (success, failed), reason (ok, validation, terminal, exhausted, canceled)
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "calls",
		Name:      "total",
		Help:      "Total make-call operations by outcome",
	}, []string{"outcome", "reason"})

	// callRetriesTotal counts retries scheduled after a recoverable provider failure
	callRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "calls",
		Name:      "retries_total",
		Help:      "Total call retries after recoverable provider errors",
	})

	// providerRequestDuration measures telephony provider API latency.
	// Labels: operation (create_call, fetch_call, fetch_account), status (success, error)
	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Telephony provider request latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation", "status"})

	// bulkJobDuration measures end-to-end bulk job runtime
	bulkJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "bulk",
		Name:      "job_duration_seconds",
		Help:      "Duration of bulk call jobs in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	// bulkJobNumbers tracks how many numbers each bulk job processed
	bulkJobNumbers = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "bulk",
		Name:      "job_numbers",
		Help:      "Numbers processed per bulk call job",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	})

	// llmCallDuration measures language-service latency.
	// Labels: operation (generate_content, generate_json), status (success, error)
	llmCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "Duration of language service calls in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation", "status"})

	// parseFallbacksTotal counts AI parses that degraded to the fallback parser.
	// Labels: reason (unavailable, service_error, empty_response, malformed_json, schema)
	parseFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parser",
		Name:      "ai_fallbacks_total",
		Help:      "AI parses that fell back to keyword parsing, by reason",
	}, []string{"reason"})

	// fusionDecisionsTotal counts fusion outcomes by processing method
	fusionDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parser",
		Name:      "fusion_decisions_total",
		Help:      "Fusion decisions by processing method",
	}, []string{"method"})

	// commandsTotal counts executed commands.
	// Labels: action, status (success, error)
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "commands",
		Name:      "total",
		Help:      "Executed commands by action and status",
	}, []string{"action", "status"})

	// httpRequestDuration measures API request latency.
	// Labels: method, status
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// Outcome label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func statusLabel(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordCall records a finished make-call operation
func RecordCall(outcome, reason string) {
	callsTotal.WithLabelValues(outcome, reason).Inc()
}

// RecordRetry records one scheduled retry
func RecordRetry() {
	callRetriesTotal.Inc()
}

// RecordProviderRequest records the latency of one telephony API request
func RecordProviderRequest(operation string, duration time.Duration, err error) {
	providerRequestDuration.WithLabelValues(operation, statusLabel(err)).Observe(duration.Seconds())
}

// RecordBulkJob records one finished bulk call job
func RecordBulkJob(numbers int, duration time.Duration) {
	bulkJobDuration.Observe(duration.Seconds())
	bulkJobNumbers.Observe(float64(numbers))
}

// RecordLLMCall records the latency of one language-service call
func RecordLLMCall(operation string, duration time.Duration, err error) {
	llmCallDuration.WithLabelValues(operation, statusLabel(err)).Observe(duration.Seconds())
}

// RecordParseFallback records an AI parse that degraded to the fallback parser
func RecordParseFallback(reason string) {
	parseFallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordFusionDecision records the processing method chosen by fusion
func RecordFusionDecision(method string) {
	fusionDecisionsTotal.WithLabelValues(method).Inc()
}

// RecordCommand records an executed command
func RecordCommand(action, status string) {
	commandsTotal.WithLabelValues(action, status).Inc()
}

// RecordHTTPRequest records one served HTTP request
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestDuration.WithLabelValues(method, statusClass(status)).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
