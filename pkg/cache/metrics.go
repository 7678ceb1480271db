package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of catalog response cache hits",
		},
		[]string{"layer"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of catalog response cache misses",
		},
		[]string{"layer"},
	)

	// Revalidations tracks 304 Not Modified responses served from cache
	Revalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_revalidations_total",
			Help: "Total number of 304 Not Modified responses served from cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
