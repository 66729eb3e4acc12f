// Package metrics provides the centralized Prometheus metrics registry for
// the harvester. All metrics are defined in their respective packages
// (fetch, ratelimit, sink, cache) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Fetch Metrics (pkg/fetch):
//   - harvest_requests_total{status} (Counter): Fetch requests by HTTP status
//   - harvest_request_duration_seconds (Histogram): Fetch request duration
//   - harvest_fetch_errors_total{kind} (Counter): Classified fetch errors by kind
//
// Retry Metrics (pkg/fetch):
//   - harvest_retries_total{kind} (Counter): Retry attempts by failure kind
//   - harvest_retry_backoff_seconds{kind} (Histogram): Backoff duration by failure kind
//   - harvest_retry_exhausted_total{kind} (Counter): IDs that exhausted max attempts
//
// Rate Limit Metrics (pkg/ratelimit):
//   - harvest_requests_in_flight (Gauge): Requests currently holding a concurrency slot
//   - harvest_rate_limit_cooldowns_total (Counter): Pool-wide cooldown windows entered
//   - harvest_cooldown_wait_seconds (Histogram): Time spent waiting out cooldowns
//
// Sink Metrics (pkg/sink):
//   - harvest_chunks_written_total (Counter): Chunk files written
//   - harvest_payloads_written_total (Counter): Payloads persisted across all chunks
//
// Cache Metrics (pkg/cache):
//   - harvest_cache_hits_total (Counter): Payloads served from cache
//   - harvest_cache_misses_total (Counter): Lookups that fell through to the network
//   - harvest_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Fetch Error Rate
//   rate(harvest_fetch_errors_total[5m]) / rate(harvest_requests_total[5m])
//
//   # Concurrency Saturation
//   harvest_requests_in_flight
//
//   # Retry Exhaustion Rate
//   rate(harvest_retry_exhausted_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(harvest_request_duration_seconds_bucket[5m]))
//
//   # Cache Hit Rate
//   rate(harvest_cache_hits_total[5m]) /
//   (rate(harvest_cache_hits_total[5m]) + rate(harvest_cache_misses_total[5m]))
