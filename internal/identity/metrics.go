package identity

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movies_backend_identity_provider_calls_total",
			Help: "Total number of identity provider calls by operation and outcome kind.",
		},
		[]string{"operation", "outcome"},
	)
	providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movies_backend_identity_provider_call_duration_seconds",
			Help:    "Identity provider call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	revocationCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movies_backend_identity_revocation_cache_lookups_total",
			Help: "Revocation cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(providerCallsTotal, providerCallDuration, revocationCacheLookups)
}

// observe records a finished provider call. err must already be translated.
func observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	providerCallsTotal.WithLabelValues(op, outcome).Inc()
	providerCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
