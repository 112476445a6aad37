// Package metrics holds the Prometheus collectors for the recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Time to produce a recommendation list",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"}, // "cache_hit", "scored", "error"
	)

	ResultCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_hits_total",
			Help: "Total number of recommendation lists served from Redis",
		},
	)

	ResultCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_cache_misses_total",
			Help: "Total number of recommendation lists that had to be scored",
		},
	)

	TextIndexRebuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "text_index_rebuilds_total",
			Help: "Total number of description index rebuilds",
		},
	)

	TextIndexInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "text_index_invalidations_total",
			Help: "Total number of explicit description index invalidations",
		},
	)

	TextIndexTerms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "text_index_terms",
			Help: "Vocabulary size of the current description index",
		},
	)

	CatalogEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_events_total",
			Help: "Catalogue-changed events by direction",
		},
		[]string{"direction"}, // "published", "received"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
