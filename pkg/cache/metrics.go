package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	// CacheHits counts payloads served from cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_cache_hits_total",
		Help: "Total payload cache hits",
	})

	// CacheMisses counts lookups that fell through to the network.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_cache_misses_total",
		Help: "Total payload cache misses",
	})

	// CacheErrors counts failed cache operations by operation type.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_cache_errors_total",
		Help: "Total cache operation errors",
	}, []string{"operation"})
)
