// Package metrics holds the Prometheus collectors for the API.
//
// Every Record method is safe to call on a nil *Metrics, so services and
// tests can run without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dedup outcomes.
const (
	OutcomeFound            = "found"
	OutcomeCreated          = "created"
	OutcomeConflictResolved = "conflict_resolved"
	OutcomeError            = "error"
)

// Auth and ingest results.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultInvalid  = "invalid"
	ResultRejected = "rejected"
)

type Metrics struct {
	registry *prometheus.Registry

	DedupTotal      *prometheus.CounterVec
	AuthTotal       *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	IngestEvents    *prometheus.CounterVec
	RateLimitDenied prometheus.Counter
}

// New creates the collectors on a private registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		DedupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_tracker_dedup_total",
				Help: "Deduplication decisions by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
		AuthTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_tracker_auth_total",
				Help: "Authentication attempts by operation and result",
			},
			[]string{"operation", "result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_tracker_http_requests_total",
				Help: "HTTP requests by method, route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tour_tracker_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		IngestEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tour_tracker_ingest_events_total",
				Help: "Ticketmaster events processed by result",
			},
			[]string{"result"},
		),
		RateLimitDenied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tour_tracker_rate_limit_denied_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
	}

	reg.MustRegister(m.DedupTotal, m.AuthTotal, m.HTTPRequests, m.HTTPDuration, m.IngestEvents, m.RateLimitDenied)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) RecordDedup(entity, outcome string) {
	if m == nil {
		return
	}
	m.DedupTotal.WithLabelValues(entity, outcome).Inc()
}

func (m *Metrics) RecordAuth(operation, result string) {
	if m == nil {
		return
	}
	m.AuthTotal.WithLabelValues(operation, result).Inc()
}

// RecordHTTP counts one request. route is the chi route pattern, never the
// raw path, to keep label cardinality bounded.
func (m *Metrics) RecordHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordIngest(result string) {
	if m == nil {
		return
	}
	m.IngestEvents.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitDenied.Inc()
}
