// Package metrics declares the Prometheus collectors for the identity engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	MergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_merges_total",
			Help: "Total number of member ID merge attempts.",
		},
		[]string{"result"},
	)

	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_invite_claims_total",
			Help: "Total number of invite claim attempts.",
		},
		[]string{"result"},
	)

	OrphansFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "janitor_orphans_found_total",
			Help: "Total orphaned identities detected by the janitor.",
		},
	)

	OrphansCleanedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "janitor_orphans_cleaned_total",
			Help: "Total orphaned identities cleaned by the janitor.",
		},
	)

	JanitorRunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "janitor_run_duration_seconds",
			Help:    "Duration of janitor runs.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// MustRegister registers every collector with the default registry.
// Call once at startup.
func MustRegister() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		MergesTotal,
		ClaimsTotal,
		OrphansFoundTotal,
		OrphansCleanedTotal,
		JanitorRunDurationSeconds,
	)
}
