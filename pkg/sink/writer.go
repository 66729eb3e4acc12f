// Package sink assembles successful payloads into fixed-size chunks and
// persists them as numbered JSON files.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for chunk persistence.
var (
	chunksWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_chunks_written_total",
		Help: "Total chunk files written",
	})

	payloadsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_payloads_written_total",
		Help: "Total payloads persisted across all chunks",
	})
)

// chunkFilePattern names output files; chunk numbering starts at 1.
const chunkFilePattern = "products_%d.json"

// Writer persists one chunk. The filesystem implementation is the production
// one; tests substitute an in-memory recorder.
type Writer interface {
	WriteChunk(chunkNumber int, payloads []json.RawMessage) error
}

// FileWriter writes chunks as pretty-printed JSON arrays under a directory.
type FileWriter struct {
	dir    string
	logger zerolog.Logger
}

// NewFileWriter creates a file writer. The directory must already exist.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{
		dir:    dir,
		logger: log.With().Str("component", "writer").Logger(),
	}
}

// WriteChunk serializes the payloads as a JSON array, in append order, to
// products_<chunkNumber>.json.
func (w *FileWriter) WriteChunk(chunkNumber int, payloads []json.RawMessage) error {
	start := time.Now()

	data, err := json.MarshalIndent(payloads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chunk %d: %w", chunkNumber, err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf(chunkFilePattern, chunkNumber))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write chunk %d: %w", chunkNumber, err)
	}

	chunksWrittenTotal.Inc()
	payloadsWrittenTotal.Add(float64(len(payloads)))

	w.logger.Info().
		Int("chunk", chunkNumber).
		Int("payloads", len(payloads)).
		Str("path", path).
		Dur("duration", time.Since(start)).
		Msg("Chunk written")

	return nil
}

// NextChunkNumber scans dir for existing chunk files and returns the number
// after the highest one, or 1 if none exist. Used by retry runs so recovered
// payloads continue the sequence instead of overwriting earlier chunks.
func NextChunkNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scan output dir: %w", err)
	}

	max := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "products_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "products_"), ".json"))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}
