// Package metrics exposes the Prometheus collectors served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupsTotal counts player lookups by platform and outcome (success,
	// error), recorded once per request at the router's dispatch point.
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_gateway_lookups_total",
			Help: "Total player identity lookups by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)

	// LookupDuration tracks end-to-end lookup latency by platform.
	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "identity_gateway_lookup_duration_seconds",
			Help:    "Player lookup latency by platform.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform"},
	)

	// CacheHits and CacheMisses track the edge response cache ("memory",
	// recorded by the api package's EdgeCache middleware) and the persistent
	// per-pipeline cache facade ("badger", recorded by cache.Facade.Get).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_gateway_cache_hits_total",
			Help: "Cache hits by layer (memory, badger).",
		},
		[]string{"layer"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_gateway_cache_misses_total",
			Help: "Cache misses by layer (memory, badger).",
		},
		[]string{"layer"},
	)

	// UpstreamRequestsTotal counts upstream transport calls by host,
	// request type (fetch, tcp, container), and outcome.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_gateway_upstream_requests_total",
			Help: "Upstream transport calls by host, request type, and outcome.",
		},
		[]string{"host", "request_type", "outcome"},
	)

	// CircuitBreakerState reports each per-host breaker's current state
	// (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "identity_gateway_circuit_breaker_state",
			Help: "Per-host circuit breaker state: 0=closed, 1=half-open, 2=open.",
		},
		[]string{"host"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_gateway_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions by host.",
		},
		[]string{"host", "from", "to"},
	)

	// HytaleSessionPoolSize reports the current live Hytale session pool
	// size.
	HytaleSessionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "identity_gateway_hytale_session_pool_size",
			Help: "Current size of the Hytale game-session pool.",
		},
	)

	// HytaleTokenRefreshTotal counts Hytale OAuth token refreshes by
	// outcome.
	HytaleTokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_gateway_hytale_token_refresh_total",
			Help: "Hytale OAuth token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)
)
