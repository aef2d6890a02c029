package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the tile orchestrator.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       *prometheus.CounterVec
	errorsTotal         *prometheus.CounterVec
	plansEmittedTotal   prometheus.Counter
	segmentFailures     *prometheus.CounterVec
	tilesPlannedTotal   prometheus.Counter
	activeRuns          prometheus.Gauge
	toolDurationSeconds *prometheus.HistogramVec
}

// New creates and registers the orchestrator's collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_http_requests_total",
		Help: "Total number of HTTP requests received, by route pattern",
	}, []string{"route"})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx), by route pattern",
	}, []string{"route"})
	plansEmittedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tiles_plans_emitted_total",
		Help: "Total number of segment encode plans emitted",
	})
	segmentFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_segment_failures_total",
		Help: "Total number of segments that failed, by pipeline stage",
	}, []string{"stage"})
	tilesPlannedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tiles_planned_total",
		Help: "Total number of tiles across all emitted plans",
	})
	activeRuns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tiles_active_runs",
		Help: "Number of runs that are not finished",
	})
	toolDurationSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tiles_external_tool_duration_seconds",
		Help:    "Wall time of external tool invocations",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"tool"})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		plansEmittedTotal,
		segmentFailures,
		tilesPlannedTotal,
		activeRuns,
		toolDurationSeconds,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		errorsTotal:         errorsTotal,
		plansEmittedTotal:   plansEmittedTotal,
		segmentFailures:     segmentFailures,
		tilesPlannedTotal:   tilesPlannedTotal,
		activeRuns:          activeRuns,
		toolDurationSeconds: toolDurationSeconds,
	}
}

// IncRequests counts a request served by route.
func (m *Metrics) IncRequests(route string) {
	m.requestsTotal.WithLabelValues(route).Inc()
}

// IncErrors counts an error response served by route.
func (m *Metrics) IncErrors(route string) {
	m.errorsTotal.WithLabelValues(route).Inc()
}

// ObservePlan records one emitted plan with the given tile count.
func (m *Metrics) ObservePlan(tiles int) {
	m.plansEmittedTotal.Inc()
	m.tilesPlannedTotal.Add(float64(tiles))
}

// IncSegmentFailures counts a failed segment under its stage label.
func (m *Metrics) IncSegmentFailures(stage string) {
	m.segmentFailures.WithLabelValues(stage).Inc()
}

// SetActiveRuns sets the active runs gauge.
func (m *Metrics) SetActiveRuns(n int) {
	m.activeRuns.Set(float64(n))
}

// ObserveToolDuration records how long an external tool ran.
func (m *Metrics) ObserveToolDuration(tool string, d time.Duration) {
	m.toolDurationSeconds.WithLabelValues(tool).Observe(d.Seconds())
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active runs).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
