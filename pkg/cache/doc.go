// Package cache provides an optional Redis-backed payload cache keyed by
// product ID.
//
// Like the pre-flight dedup filter, the cache is a cost-avoidance layer: a
// hit short-circuits the network fetch entirely and counts as a success. It
// is optional by design; the orchestration core runs identically with the
// cache disabled, and unit tests never require Redis.
//
// Example usage:
//
//	store := cache.NewStore(redisClient, 24*time.Hour)
//	fetcher := cache.NewFetcher(httpFetcher, store)
//	policy := fetch.NewPolicy(fetcher, limiter, fetch.DefaultRetryConfig())
package cache
