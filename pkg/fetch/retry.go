package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_retries_total",
		Help: "Total number of retry attempts by failure kind",
	}, []string{"kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvest_retry_backoff_seconds",
		Help:    "Backoff duration for retries by failure kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by failure kind",
	}, []string{"kind"})
)

// Gate bounds request issuance. Acquire blocks until both a concurrency slot
// and a rate token are available; Release returns the slot. The retry policy
// holds the gate only for the duration of an active request, never across a
// backoff sleep.
type Gate interface {
	Acquire(ctx context.Context) error
	Release()
}

// RetryConfig holds the configuration for retry behavior.
type RetryConfig struct {
	// MaxAttempts is the total number of fetch calls allowed per ID,
	// including the first.
	MaxAttempts int

	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// Policy wraps a Fetcher with bounded exponential-backoff retry for
// transient failures. Permanent failures fail immediately; exhausting all
// attempts converts the last transient failure into a terminal failure
// outcome.
type Policy struct {
	fetcher Fetcher
	gate    Gate
	config  RetryConfig
	logger  zerolog.Logger
}

// NewPolicy creates a retry policy around the given fetcher. gate may be nil
// for ungated fetching (tests, single-shot tools).
func NewPolicy(fetcher Fetcher, gate Gate, cfg RetryConfig) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	return &Policy{
		fetcher: fetcher,
		gate:    gate,
		config:  cfg,
		logger:  log.With().Str("component", "retry").Logger(),
	}
}

// Process drives one product ID to a terminal outcome. The gate is acquired
// before each attempt and released right after it, so a worker backing off on
// one ID never starves the pool of concurrency for other IDs.
func (p *Policy) Process(ctx context.Context, id string) Outcome {
	var lastKind FailureKind
	var lastMsg string
	delay := p.config.BaseDelay

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		if p.gate != nil {
			if err := p.gate.Acquire(ctx); err != nil {
				if attempt == 1 {
					lastKind = KindConnectionError
					lastMsg = fmt.Sprintf("%v: %v", ErrContextCancelled, err)
				}
				return Failure(id, lastKind, lastMsg, attempt-1)
			}
		}

		payload, err := p.fetcher.Fetch(ctx, id)
		if p.gate != nil {
			p.gate.Release()
		}

		if err == nil {
			if attempt > 1 {
				p.logger.Info().
					Str("product_id", id).
					Int("attempt", attempt).
					Msg("Fetch succeeded after retry")
			}
			return Success(id, payload, attempt)
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			// Not a classified API condition: cancellation or a defect.
			return Failure(id, KindConnectionError, err.Error(), attempt)
		}

		lastKind = apiErr.Kind
		lastMsg = apiErr.Message
		if apiErr.StatusCode != 0 {
			lastMsg = fmt.Sprintf("HTTP %d: %s", apiErr.StatusCode, apiErr.Message)
		}

		if !apiErr.Kind.Transient() {
			// Retrying a permanent failure cannot change the outcome.
			p.logger.Debug().
				Str("product_id", id).
				Str("kind", string(apiErr.Kind)).
				Msg("Permanent failure, not retrying")
			return Failure(id, apiErr.Kind, lastMsg, attempt)
		}

		if attempt >= p.config.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(apiErr.Kind)).Inc()

		// Jitter of ±25% avoids synchronized retry storms across workers.
		wait := time.Duration(float64(delay) * (0.75 + rand.Float64()*0.5))
		retryBackoffSeconds.WithLabelValues(string(apiErr.Kind)).Observe(wait.Seconds())

		p.logger.Debug().
			Str("product_id", id).
			Str("kind", string(apiErr.Kind)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Failure(id, lastKind,
				fmt.Sprintf("%v during backoff: %s", ErrContextCancelled, lastMsg), attempt)
		case <-timer.C:
		}

		delay *= 2
		if delay > p.config.MaxDelay {
			delay = p.config.MaxDelay
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastKind)).Inc()
	p.logger.Warn().
		Str("product_id", id).
		Str("kind", string(lastKind)).
		Int("max_attempts", p.config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return Failure(id, lastKind,
		fmt.Sprintf("%v: %s", ErrRetryExhausted, lastMsg), p.config.MaxAttempts)
}
