package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates the product ID was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "harvest:product:"

// Store caches fetched payloads in Redis.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a payload cache store.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get retrieves a cached payload. Returns ErrCacheMiss if the ID is not
// cached.
func (s *Store) Get(ctx context.Context, id string) (json.RawMessage, error) {
	data, err := s.redis.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	CacheHits.Inc()
	return data, nil
}

// Set stores a payload with the configured TTL.
func (s *Store) Set(ctx context.Context, id string, payload json.RawMessage) error {
	if err := s.redis.Set(ctx, keyPrefix+id, []byte(payload), s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a cached payload.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, keyPrefix+id).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
