// Package metrics owns the Prometheus registry of the backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes reported for provider requests.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeCircuitOpen = "circuit_open"
)

// Metrics groups the collectors of the application on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	providerRequests      *prometheus.CounterVec
	providerDuration      *prometheus.HistogramVec
	serializationFailures *prometheus.CounterVec
	ingestedPoints        *prometheus.CounterVec
	scheduledRuns         *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fogcast_provider_requests_total",
			Help: "Total number of upstream provider requests by outcome",
		}, []string{"provider", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fogcast_provider_request_duration_seconds",
			Help:    "Duration of upstream provider requests in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		serializationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fogcast_serialization_failures_total",
			Help: "Total number of responses that failed to serialize",
		}, []string{"route"}),
		ingestedPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fogcast_ingested_points_total",
			Help: "Total number of points written to the time-series database",
		}, []string{"source"}),
		scheduledRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fogcast_scheduler_runs_total",
			Help: "Total number of scheduled job runs by job and outcome",
		}, []string{"job", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.providerRequests,
		m.providerDuration,
		m.serializationFailures,
		m.ingestedPoints,
		m.scheduledRuns,
	)
	return m
}

// ObserveProviderRequest counts one provider request.
func (m *Metrics) ObserveProviderRequest(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
	m.providerDuration.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) SerializationFailed(route string) {
	if m == nil {
		return
	}
	m.serializationFailures.WithLabelValues(route).Inc()
}

// AddIngested counts points written by source (scheduler, mqtt, migration).
func (m *Metrics) AddIngested(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestedPoints.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) JobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.scheduledRuns.WithLabelValues(job, outcome).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
