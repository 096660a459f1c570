// Package metrics exposes Prometheus instruments for the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	DatasetLoads    *prometheus.CounterVec
	DatasetPoints   *prometheus.GaugeVec
}

// New registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "atlas",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name.",
		}, []string{"cache"}),
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Name:      "dataset_loads_total",
			Help:      "Dataset loads by plot and result.",
		}, []string{"plot", "result"}),
		DatasetPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "atlas",
			Name:      "dataset_points",
			Help:      "Points in the currently loaded dataset.",
		}, []string{"plot"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.CacheHits,
		m.CacheMisses,
		m.DatasetLoads,
		m.DatasetPoints,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CacheResult records a hit or miss for the named cache.
func (m *Metrics) CacheResult(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// DatasetLoaded records a load attempt.
func (m *Metrics) DatasetLoaded(plot string, points int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DatasetLoads.WithLabelValues(plot, "error").Inc()
		return
	}
	m.DatasetLoads.WithLabelValues(plot, "ok").Inc()
	m.DatasetPoints.WithLabelValues(plot).Set(float64(points))
}

// unmatchedRoute labels requests no route matched, keeping label values
// bounded.
const unmatchedRoute = "unmatched"

// Middleware records request count and latency labeled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
