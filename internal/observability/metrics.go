// Package observability exposes Prometheus metrics for the HTTP surface
// and the financial mutation protocol.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects application metrics on a private registry.
type Metrics struct {
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	auditWriteFailures   *prometheus.CounterVec
	compensationFailures *prometheus.CounterVec
	duplicateConflicts   *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	auditFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_audit_write_failures_total",
		Help: "Financial mutations whose paired audit write failed.",
	}, []string{"kind"})
	compFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_compensation_failures_total",
		Help: "Compensating deletes that failed, leaving unaudited records.",
	}, []string{"kind"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_duplicate_conflicts_total",
		Help: "Creations rejected as duplicates.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, auditFailures, compFailures, duplicates)
	return &Metrics{
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:        requests,
		requestDuration:      duration,
		auditWriteFailures:   auditFailures,
		compensationFailures: compFailures,
		duplicateConflicts:   duplicates,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// AuditWriteFailure counts a mutation left without its audit pair before
// compensation ran. Satisfies the finance protocol metrics interface.
func (m *Metrics) AuditWriteFailure(kind string) {
	if m == nil {
		return
	}
	m.auditWriteFailures.WithLabelValues(kind).Inc()
}

// CompensationFailure counts the manual-reconciliation outcome.
func (m *Metrics) CompensationFailure(kind string) {
	if m == nil {
		return
	}
	m.compensationFailures.WithLabelValues(kind).Inc()
}

// DuplicateConflict counts rejected duplicate submissions.
func (m *Metrics) DuplicateConflict(kind string) {
	if m == nil {
		return
	}
	m.duplicateConflicts.WithLabelValues(kind).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
