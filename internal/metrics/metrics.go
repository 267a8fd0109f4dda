package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviescout",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	CatalogRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "catalog_requests_total",
		Help:      "Total catalog API requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	CatalogRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviescout",
		Name:      "catalog_request_duration_seconds",
		Help:      "Catalog API request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	QueryResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "query_results_total",
		Help:      "Completed movie queries by result status.",
	}, []string{"status"})

	TrendingHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "trending_hits_total",
		Help:      "Search hits recorded into the trending store.",
	})

	TrendingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "trending_errors_total",
		Help:      "Trending store failures by operation.",
	}, []string{"op"})

	TrendingQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moviescout",
		Name:      "trending_queue_depth",
		Help:      "Hits waiting in the trending dispatcher queue.",
	})

	TrendingDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "trending_dropped_total",
		Help:      "Hits dropped because the trending dispatcher queue was full or closed.",
	})

	StaleResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moviescout",
		Name:      "session_stale_results_total",
		Help:      "Query results discarded because a newer query superseded them.",
	})

	LiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moviescout",
		Name:      "live_sessions",
		Help:      "Open live search sessions.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CatalogRequestsTotal,
		CatalogRequestDuration,
		QueryResultsTotal,
		TrendingHitsTotal,
		TrendingErrorsTotal,
		TrendingQueueDepth,
		TrendingDroppedTotal,
		StaleResultsTotal,
		LiveSessions,
	)
}
