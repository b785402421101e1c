package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vodsearch",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vodsearch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	SiteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vodsearch",
		Name:      "site_requests_total",
		Help:      "Total requests to upstream sites by site key and result status.",
	}, []string{"site", "status"})

	SiteRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vodsearch",
		Name:      "site_request_duration_seconds",
		Help:      "Upstream site request duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 12},
	}, []string{"site"})

	SiteAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vodsearch",
		Name:      "site_available",
		Help:      "Whether a site is available (1) or blocked by circuit breaker (0).",
	}, []string{"site"})

	TierSearchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vodsearch",
		Name:      "tier_search_duration_seconds",
		Help:      "Tier fan-out duration in seconds by tier.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 8, 10},
	}, []string{"tier"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vodsearch",
		Name:      "cache_hits_total",
		Help:      "Total number of search cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vodsearch",
		Name:      "cache_misses_total",
		Help:      "Total number of search cache misses.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SiteRequestsTotal,
		SiteRequestDuration,
		SiteAvailable,
		TierSearchDuration,
		CacheHitsTotal,
		CacheMissesTotal,
	)
}
