// Package metrics declares the Prometheus collectors for the engine:
// HTTP surface, per-plugin search outcomes, cache hit rates, link
// validation, and CrawlJob packaging.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scavengarr",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path, and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scavengarr",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	PluginRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scavengarr",
		Name:      "plugin_requests_total",
		Help:      "Total plugin search invocations by plugin name and result status.",
	}, []string{"plugin", "status"})

	PluginRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scavengarr",
		Name:      "plugin_request_duration_seconds",
		Help:      "Plugin search duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"plugin"})

	PluginAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "scavengarr",
		Name:      "plugin_available",
		Help:      "Whether a plugin is available (1) or blocked by the circuit breaker (0).",
	}, []string{"plugin"})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scavengarr",
		Name:      "cache_hits_total",
		Help:      "Total cache hits by namespace.",
	}, []string{"namespace"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scavengarr",
		Name:      "cache_misses_total",
		Help:      "Total cache misses by namespace.",
	}, []string{"namespace"})

	LinkValidationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scavengarr",
		Name:      "link_validation_duration_seconds",
		Help:      "Batch link validation duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20},
	})

	CrawlJobsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scavengarr",
		Name:      "crawljobs_created_total",
		Help:      "Total CrawlJob entities created.",
	})

	InFlightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scavengarr",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests, tracked for graceful shutdown.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PluginRequestsTotal,
		PluginRequestDuration,
		PluginAvailable,
		CacheHitsTotal,
		CacheMissesTotal,
		LinkValidationDuration,
		CrawlJobsCreatedTotal,
		InFlightRequests,
	)
}
