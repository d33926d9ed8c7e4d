// Package metrics defines the Prometheus metric collectors used across the
// indexer and admin services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the indexer.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	EventsConsolidated   prometheus.Counter
	EventsDropped        prometheus.Counter
	DocumentsWritten     *prometheus.CounterVec
	BulkWriteDuration    prometheus.Histogram
	BulkWriteFailures    prometheus.Counter
	ReindexJobsTotal     *prometheus.CounterVec
	IndexRecreations     prometheus.Counter
	ConsortiumMerges     *prometheus.CounterVec
	JobsRunning          prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		EventsConsolidated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "resource_events_consolidated_total",
				Help: "Total resource change events accepted by consolidation.",
			},
		),
		EventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "resource_events_dropped_total",
				Help: "Total malformed resource events dropped during consolidation.",
			},
		),
		DocumentsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_documents_written_total",
				Help: "Total search document operations submitted, by action.",
			},
			[]string{"action"},
		),
		BulkWriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bulk_write_duration_seconds",
				Help:    "Bulk write latency against the search engine in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		BulkWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bulk_write_failures_total",
				Help: "Total failed bulk writes against the search engine.",
			},
		),
		ReindexJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reindex_jobs_total",
				Help: "Total reindex jobs by reindex mode and outcome.",
			},
			[]string{"mode", "status"},
		),
		IndexRecreations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_recreations_total",
				Help: "Total drop-and-recreate operations on physical indexes.",
			},
		),
		ConsortiumMerges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consortium_merges_total",
				Help: "Total consortium merge operations by kind (save, delete).",
			},
			[]string{"kind"},
		),
		JobsRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenant_jobs_running",
				Help: "Number of tenant-scoped async jobs currently running.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.EventsConsolidated,
		m.EventsDropped,
		m.DocumentsWritten,
		m.BulkWriteDuration,
		m.BulkWriteFailures,
		m.ReindexJobsTotal,
		m.IndexRecreations,
		m.ConsortiumMerges,
		m.JobsRunning,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
