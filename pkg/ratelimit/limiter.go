package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit gating.
var (
	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvest_requests_in_flight",
		Help: "Number of requests currently holding a concurrency slot",
	})

	cooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_rate_limit_cooldowns_total",
		Help: "Total number of pool-wide cooldown windows entered",
	})

	cooldownWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_cooldown_wait_seconds",
		Help:    "Time spent waiting for cooldown windows to pass",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Config holds the limiter configuration.
type Config struct {
	// MaxInFlight bounds concurrent requests (the semaphore size).
	MaxInFlight int

	// RequestsPerSecond is the steady-state token refill rate.
	RequestsPerSecond float64

	// Burst is the token bucket capacity.
	Burst int

	// Cooldown is the minimum pool-wide pause entered after a rate-limited
	// rejection.
	Cooldown time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxInFlight:       10,
		RequestsPerSecond: 5,
		Burst:             10,
		Cooldown:          5 * time.Second,
	}
}

// Limiter is the process-wide request gate shared by all workers. Acquire
// blocks until a concurrency slot, the cooldown window, and a rate token all
// allow the request; it never drops work.
type Limiter struct {
	slots    chan struct{}
	bucket   *rate.Limiter
	cooldown cooldownState
	config   Config
	logger   zerolog.Logger
}

// New creates a limiter.
func New(cfg Config) (*Limiter, error) {
	if cfg.MaxInFlight <= 0 {
		return nil, fmt.Errorf("max in-flight must be positive (got %d)", cfg.MaxInFlight)
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be positive (got %g)", cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.MaxInFlight
	}

	return &Limiter{
		slots:  make(chan struct{}, cfg.MaxInFlight),
		bucket: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		config: cfg,
		logger: log.With().Str("component", "ratelimit").Logger(),
	}, nil
}

// Acquire blocks until a concurrency slot and a rate token are available and
// no cooldown window is active. It returns the context error if ctx is
// cancelled while waiting; no slot is held in that case.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := l.waitCooldown(ctx); err != nil {
		<-l.slots
		return err
	}

	if err := l.bucket.Wait(ctx); err != nil {
		<-l.slots
		return err
	}

	requestsInFlight.Inc()
	return nil
}

// Release returns the concurrency slot after the request completes, whether
// it succeeded or failed.
func (l *Limiter) Release() {
	requestsInFlight.Dec()
	<-l.slots
}

// SignalRateLimited enters a pool-wide cooldown. retryAfter is the duration
// requested by the API (zero if it sent none); the effective window is the
// larger of retryAfter and the configured cooldown.
func (l *Limiter) SignalRateLimited(retryAfter time.Duration) {
	d := l.config.Cooldown
	if retryAfter > d {
		d = retryAfter
	}

	if l.cooldown.Enter(d) {
		cooldownsTotal.Inc()
		l.logger.Warn().
			Dur("cooldown", d).
			Msg("Rate limit rejection, entering pool-wide cooldown")
	}
}

// waitCooldown blocks until the cooldown window has passed. The window may be
// extended while waiting, so the wait re-checks after each timer fire.
func (l *Limiter) waitCooldown(ctx context.Context) error {
	var waited time.Duration
	for {
		remaining := l.cooldown.Remaining()
		if remaining <= 0 {
			if waited > 0 {
				cooldownWaitSeconds.Observe(waited.Seconds())
			}
			return nil
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			waited += remaining
		}
	}
}

// InFlight returns the number of concurrency slots currently held.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

// CoolingDown reports whether a cooldown window is currently active.
func (l *Limiter) CoolingDown() bool {
	return l.cooldown.Active()
}
