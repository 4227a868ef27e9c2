// Package metrics exposes the Prometheus counters operators use to see what
// the pipeline hides from callers, such as swallowed cache read errors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "instalytics"

// Pipeline outcomes
const (
	OutcomeCache    = "cache"
	OutcomeFresh    = "fresh"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds every collector the service records to
type Metrics struct {
	registry *prometheus.Registry

	CacheReadErrors     *prometheus.CounterVec
	UpstreamFailures    *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	PipelineResults     *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RateLimited         prometheus.Counter
	WarmerJobs          *prometheus.CounterVec
	PurgedProfiles      prometheus.Counter
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CacheReadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_read_errors_total",
			Help:      "Cache reads that failed and were served as a miss.",
		}, []string{"op"}),
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Failed calls to the scraping service.",
		}, []string{"call"}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Cache writes that failed.",
		}, []string{"path"}),
		PipelineResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_results_total",
			Help:      "Profile pipeline runs by terminal state.",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 5, 15, 60, 180},
		}, []string{"method", "route", "status"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		WarmerJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warmer_jobs_total",
			Help:      "Prefetch jobs by result.",
		}, []string{"status"}),
		PurgedProfiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_profiles_total",
			Help:      "Expired profiles removed by the janitor.",
		}),
	}

	m.registry.MustRegister(
		m.CacheReadErrors,
		m.UpstreamFailures,
		m.PersistenceFailures,
		m.PipelineResults,
		m.RequestDuration,
		m.RateLimited,
		m.WarmerJobs,
		m.PurgedProfiles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
