// Package pool runs concurrent fetch workers over a shared product ID queue.
//
// The pool gives no ordering guarantee between workers; each ID is processed
// by exactly one worker, exactly once, and every started ID produces exactly
// one outcome on the results channel. The channel is closed only after all
// workers have drained the queue and all in-flight work has completed, so no
// outcome is ever dropped on shutdown.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tikiops/product-harvester/pkg/fetch"
)

// Processor drives one product ID to a terminal outcome. The retry policy is
// the production implementation.
type Processor interface {
	Process(ctx context.Context, id string) fetch.Outcome
}

// Config holds the worker pool configuration.
type Config struct {
	// Workers is the number of concurrent workers.
	Workers int

	// BufferSize is the results channel buffer (default: Workers).
	BufferSize int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Workers:    10,
		BufferSize: 64,
	}
}

// Pool distributes product IDs across a fixed set of workers.
type Pool struct {
	proc   Processor
	config Config
	logger zerolog.Logger
}

// New creates a worker pool.
func New(proc Processor, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers
	}

	return &Pool{
		proc:   proc,
		config: cfg,
		logger: log.With().Str("component", "pool").Logger(),
	}
}

// Run starts the workers and returns the results channel. Cancelling ctx
// abandons IDs still queued; IDs already being processed run to their
// terminal outcome and that outcome is still delivered.
func (p *Pool) Run(ctx context.Context, ids []string) <-chan fetch.Outcome {
	queue := make(chan string, p.config.BufferSize)
	results := make(chan fetch.Outcome, p.config.BufferSize)

	start := time.Now()
	p.logger.Info().
		Int("ids", len(ids)).
		Int("workers", p.config.Workers).
		Msg("Starting worker pool")

	// Feed the queue; stop early on cancellation so workers can drain out.
	go func() {
		defer close(queue)
		for _, id := range ids {
			select {
			case queue <- id:
			case <-ctx.Done():
				p.logger.Warn().Msg("Cancelled, abandoning queued IDs")
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
		p.logger.Info().
			Dur("duration", time.Since(start)).
			Msg("Worker pool drained")
	}()

	return results
}

// worker pulls IDs from the queue until it is empty or the run is cancelled.
func (p *Pool) worker(ctx context.Context, workerID int, queue <-chan string, results chan<- fetch.Outcome, wg *sync.WaitGroup) {
	defer wg.Done()
	processed := 0

	for id := range queue {
		if ctx.Err() != nil {
			p.logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		// The send is unconditional: the collector reads until the channel
		// closes, so a completed outcome is never dropped.
		results <- p.proc.Process(ctx, id)
		processed++
	}

	if processed > 0 {
		p.logger.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Worker completed")
	}
}
