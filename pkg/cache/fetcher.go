package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tikiops/product-harvester/pkg/fetch"
)

// Fetcher decorates an inner fetcher with the payload cache. A cache hit
// performs no network call at all; a cache error falls through to the
// network rather than failing the fetch.
type Fetcher struct {
	inner  fetch.Fetcher
	store  *Store
	logger zerolog.Logger
}

// NewFetcher wraps inner with the cache store.
func NewFetcher(inner fetch.Fetcher, store *Store) *Fetcher {
	return &Fetcher{
		inner:  inner,
		store:  store,
		logger: log.With().Str("component", "cache").Logger(),
	}
}

// Fetch serves from cache when possible, otherwise delegates to the inner
// fetcher and caches a successful payload.
func (f *Fetcher) Fetch(ctx context.Context, id string) (json.RawMessage, error) {
	payload, err := f.store.Get(ctx, id)
	if err == nil {
		f.logger.Debug().Str("product_id", id).Msg("Cache hit")
		return payload, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		f.logger.Warn().Err(err).Str("product_id", id).Msg("Cache get error, falling through")
	}

	payload, err = f.inner.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := f.store.Set(ctx, id, payload); err != nil {
		f.logger.Warn().Err(err).Str("product_id", id).Msg("Failed to cache payload")
	}

	return payload, nil
}
