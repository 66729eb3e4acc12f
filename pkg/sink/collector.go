package sink

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tikiops/product-harvester/pkg/fetch"
	"github.com/tikiops/product-harvester/pkg/report"
)

// Config holds the collector configuration.
type Config struct {
	// ChunkSize is the payload capacity of one chunk file.
	ChunkSize int

	// StartChunk is the first chunk number to assign (default 1; retry
	// runs continue after existing files).
	StartChunk int

	// ProgressEvery logs a progress line after this many outcomes
	// (0 disables progress logging).
	ProgressEvery int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:     1000,
		StartChunk:    1,
		ProgressEvery: 100,
	}
}

// Collector is the single consumer of the results channel. Chunk assembly is
// single-threaded by construction, which is what makes chunk numbering
// deterministic despite unordered completion: the Nth file written is always
// the Nth chunk to reach capacity.
type Collector struct {
	writer   Writer
	reporter *report.Reporter
	config   Config
	logger   zerolog.Logger
}

// NewCollector creates a collector.
func NewCollector(writer Writer, reporter *report.Reporter, cfg Config) *Collector {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.StartChunk <= 0 {
		cfg.StartChunk = 1
	}

	return &Collector{
		writer:   writer,
		reporter: reporter,
		config:   cfg,
		logger:   log.With().Str("component", "collector").Logger(),
	}
}

// Collect consumes outcomes until the channel is closed, then flushes the
// final partial chunk. A chunk write error is remembered and returned but
// never stops consumption: draining the channel keeps the workers from
// blocking, and the remaining outcomes still reach the reporter.
func (c *Collector) Collect(results <-chan fetch.Outcome) error {
	chunk := make([]json.RawMessage, 0, c.config.ChunkSize)
	chunkNumber := c.config.StartChunk
	processed := 0
	var firstErr error

	for out := range results {
		processed++

		switch out.Status {
		case fetch.StatusSuccess:
			c.reporter.RecordSuccess(out.ID)
			chunk = append(chunk, out.Payload)
			if len(chunk) == c.config.ChunkSize {
				if err := c.writer.WriteChunk(chunkNumber, chunk); err != nil {
					c.logger.Error().Err(err).Int("chunk", chunkNumber).Msg("Chunk write failed")
					if firstErr == nil {
						firstErr = err
					}
				}
				chunkNumber++
				chunk = make([]json.RawMessage, 0, c.config.ChunkSize)
			}

		case fetch.StatusFailure:
			c.reporter.RecordFailure(out)

		case fetch.StatusDuplicate:
			c.reporter.RecordDuplicate(out.ID, 1)
		}

		if c.config.ProgressEvery > 0 && processed%c.config.ProgressEvery == 0 {
			c.logger.Info().
				Int("processed", processed).
				Int("chunks", chunkNumber-c.config.StartChunk).
				Msg("Collect progress")
		}
	}

	if len(chunk) > 0 {
		if err := c.writer.WriteChunk(chunkNumber, chunk); err != nil {
			c.logger.Error().Err(err).Int("chunk", chunkNumber).Msg("Final chunk write failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	c.logger.Info().Int("processed", processed).Msg("Collector finished")
	return firstErr
}
