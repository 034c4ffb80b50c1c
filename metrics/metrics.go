package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector exported by the API server and the worker.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	OrchestratorOutcomes *prometheus.CounterVec
	OrchestratorWait     prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter

	WorkerJobsTotal *prometheus.CounterVec
	WorkerActive    prometheus.Gauge
	QueueRedrives   *prometheus.CounterVec

	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "path"}),

		OrchestratorOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrator_outcomes_total",
			Help:      "Flight lookups by terminal outcome.",
		}, []string{"outcome"}),

		OrchestratorWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "orchestrator_wait_seconds",
			Help:      "Time spent waiting for a worker to populate the cache.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		}),

		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of flight cache hits on first lookup.",
		}),

		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of flight cache misses on first lookup.",
		}),

		WorkerJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_jobs_total",
			Help:      "Flight search jobs processed by outcome.",
		}, []string{"outcome"}),

		WorkerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_active",
			Help:      "Number of workers currently processing a job.",
		}),

		QueueRedrives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_redrives_total",
			Help:      "Failed deliveries re-published for retry or sent to the dead-letter topic.",
		}, []string{"destination"}),

		ProviderRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total requests to external providers by provider name and result status.",
		}, []string{"provider", "status"}),

		ProviderRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "External provider request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"provider"}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrchestratorOutcomes,
		m.OrchestratorWait,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.WorkerJobsTotal,
		m.WorkerActive,
		m.QueueRedrives,
		m.ProviderRequestsTotal,
		m.ProviderRequestDuration,
	)
}
