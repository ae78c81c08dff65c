package movies

import "github.com/prometheus/client_golang/prometheus"

var (
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "movies_backend_tmdb_requests_total",
		Help: "TMDB API requests by endpoint and response status.",
	}, []string{"endpoint", "status"})

	upstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "movies_backend_tmdb_request_duration_seconds",
		Help:    "TMDB API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "movies_backend_movie_cache_lookups_total",
		Help: "Movie metadata cache lookups by backend and result.",
	}, []string{"backend", "result"})
)

func init() {
	prometheus.MustRegister(upstreamRequests, upstreamDuration, cacheLookups)
}
