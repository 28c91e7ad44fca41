// Package metrics holds the engine's Prometheus collectors. Everything
// registers on the default registry; cmd/server exposes it at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts build-itineraries requests by response status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "awardengine",
		Name:      "requests_total",
		Help:      "Build-itinerary requests by HTTP status.",
	}, []string{"status"})

	// RequestDuration tracks end-to-end build latency.
	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "awardengine",
		Name:      "request_duration_seconds",
		Help:      "End-to-end build-itinerary latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	// CacheLookups counts cache reads by tier (filtered, raw,
	// availability) and outcome (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "awardengine",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by tier and outcome.",
	}, []string{"tier", "outcome"})

	// UpstreamSubqueries counts availability subqueries by outcome
	// (ok, errored, cached).
	UpstreamSubqueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "awardengine",
		Name:      "upstream_subqueries_total",
		Help:      "Availability subqueries by outcome.",
	}, []string{"outcome"})

	// RateLimitRejections counts 429s by policy reason family.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "awardengine",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the rate-limit gate.",
	})

	// ItinerariesComposed observes result-set sizes before filtering.
	ItinerariesComposed = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "awardengine",
		Name:      "itineraries_composed",
		Help:      "Itineraries surviving post-processing, per request.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})
)
