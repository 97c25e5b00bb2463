package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	movementsCommitted *prometheus.CounterVec
	allocationFailures *prometheus.CounterVec
	ledgerDrift        prometheus.Gauge
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lotkeeper_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lotkeeper_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	committed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lotkeeper_movements_committed_total",
		Help: "Committed stock movements by type.",
	}, []string{"type"})
	allocFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lotkeeper_allocation_failures_total",
		Help: "Failed allocations and commits by reason.",
	}, []string{"reason"})
	drift := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lotkeeper_ledger_drift",
		Help: "Number of batches whose quantity disagrees with the ledger.",
	})
	registry.MustRegister(requests, duration, committed, allocFailures, drift)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		movementsCommitted: committed,
		allocationFailures: allocFailures,
		ledgerDrift:        drift,
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

// Middleware records metrics for every HTTP request.
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

// MovementCommitted increments the committed movement counter.
func (m *Metrics) MovementCommitted(movementType string) {
	if m == nil {
		return
	}
	m.movementsCommitted.WithLabelValues(movementType).Inc()
}

// AllocationFailed increments the allocation failure counter.
func (m *Metrics) AllocationFailed(reason string) {
	if m == nil {
		return
	}
	m.allocationFailures.WithLabelValues(reason).Inc()
}

// SetLedgerDrift records the latest reconciliation drift count.
func (m *Metrics) SetLedgerDrift(batches int) {
	if m == nil {
		return
	}
	m.ledgerDrift.Set(float64(batches))
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
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
