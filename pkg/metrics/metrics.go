// Package metrics provides Prometheus instrumentation for the tap:
// HTTP request counts and latency, records extracted per stream, and
// export job outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts API requests by endpoint and HTTP status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_sailthru_http_requests_total",
			Help: "Total HTTP requests made against the Sailthru API",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration tracks API request latency by endpoint
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tap_sailthru_http_request_duration_seconds",
			Help:    "Latency of Sailthru API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// RecordsExtracted counts records emitted per stream
	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_sailthru_records_extracted_total",
			Help: "Total records emitted per stream",
		},
		[]string{"stream"},
	)

	// ExportJobs counts bulk export jobs by job type and outcome
	ExportJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_sailthru_export_jobs_total",
			Help: "Total bulk export jobs by outcome",
		},
		[]string{"job", "outcome"},
	)

	// RetryAttempts counts retries by retry layer
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tap_sailthru_retry_attempts_total",
			Help: "Total request retries by layer (backoff or rate_limit)",
		},
		[]string{"layer"},
	)
)

// Timer measures elapsed time for an operation
type Timer struct {
	start time.Time
}

// NewTimer creates and starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since the timer started
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveRequest records a completed API request
func ObserveRequest(endpoint, status string, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
