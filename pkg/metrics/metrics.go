// Package metrics exposes Prometheus metrics for upload processing, narrative
// generation, sessions and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector. A nil *Manager is a valid no-op recorder.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	runs             *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	tablesClassified *prometheus.CounterVec
	warnings         *prometheus.CounterVec
	narratives       *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) { m.namespace = ns }
}

// WithHistogramBuckets overrides the latency buckets.
func WithHistogramBuckets(b []float64) Option {
	return func(m *Manager) { m.histogramBuckets = b }
}

// WithRegistry registers collectors on r instead of a fresh registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// NewManager creates and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "feedback_insights",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)
	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "pipeline_runs_total",
		Help:      "Processing runs by result",
	}, []string{"result"})
	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Time spent in each processing stage",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})
	m.tablesClassified = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "tables_classified_total",
		Help:      "Loaded tables by assigned category",
	}, []string{"category"})
	m.warnings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "pipeline_warnings_total",
		Help:      "Recoverable degradations by stage",
	}, []string{"stage"})
	m.narratives = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "narratives_total",
		Help:      "Narratives generated by backend",
	}, []string{"backend"})
	m.fallbacks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "narrative_fallbacks_total",
		Help:      "Narrative backend failures masked by rule-based text",
	}, []string{"backend"})
	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "active_sessions",
		Help:      "Sessions currently holding a processed run",
	})
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   m.histogramBuckets,
	}, []string{"method", "route"})
	return m
}

// Registry returns the registry the collectors live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) RunCompleted(result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
}

func (m *Manager) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Manager) TablesClassified(category string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.tablesClassified.WithLabelValues(category).Add(float64(n))
}

func (m *Manager) Warnings(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.warnings.WithLabelValues(stage).Add(float64(n))
}

func (m *Manager) NarrativeGenerated(backend string) {
	if m == nil {
		return
	}
	m.narratives.WithLabelValues(backend).Inc()
}

// NarrativeFallback matches the summarizer fallback hook signature.
func (m *Manager) NarrativeFallback(backend string, _ error) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(backend).Inc()
}

func (m *Manager) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
