// Package ids loads product ID lists and removes redundant work before any
// network cost is incurred.
package ids

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Normalizer canonicalizes an ID before duplicate matching. The default is
// the identity function (exact-match semantics); broader matching such as
// case folding is a configuration decision, not a code change.
type Normalizer func(string) string

// Duplicate records an ID that occurred more than once in the input.
type Duplicate struct {
	// ID is the duplicated product ID.
	ID string

	// Extra is the number of occurrences beyond the first.
	Extra int
}

// Result is the output of the pre-flight dedup pass.
type Result struct {
	// Unique holds each requested ID once, in first-occurrence order.
	Unique []string

	// Duplicates holds every ID that repeated, ordered by first repeat,
	// each recorded once with its extra-occurrence count.
	Duplicates []Duplicate

	// TotalRequested is the raw input length before deduplication.
	TotalRequested int
}

// Loader reads ID lists from files or streams.
type Loader struct {
	normalize Normalizer
	logger    zerolog.Logger
}

// NewLoader creates a loader. normalize may be nil for exact-match semantics.
func NewLoader(normalize Normalizer) *Loader {
	if normalize == nil {
		normalize = func(s string) string { return s }
	}
	return &Loader{
		normalize: normalize,
		logger:    log.With().Str("component", "ids").Logger(),
	}
}

// ReadFile loads IDs from a file, one per line.
func (l *Loader) ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open id list: %w", err)
	}
	defer f.Close()

	ids, err := l.Read(f)
	if err != nil {
		return nil, fmt.Errorf("read id list %s: %w", path, err)
	}
	return ids, nil
}

// Read loads IDs from a stream. Each line contributes its first
// comma-separated field; lines whose first field is not a plain number are
// skipped (this tolerates CSV headers and lets a failure log be fed straight
// back in as input).
func (l *Loader) Read(r io.Reader) ([]string, error) {
	var ids []string
	skipped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		field := scanner.Text()
		if i := strings.IndexByte(field, ','); i >= 0 {
			field = field[:i]
		}
		field = strings.TrimSpace(field)

		if !isNumeric(field) {
			if field != "" {
				skipped++
			}
			continue
		}
		ids = append(ids, field)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if skipped > 0 {
		l.logger.Debug().Int("skipped_lines", skipped).Msg("Skipped non-numeric lines")
	}
	l.logger.Info().Int("ids", len(ids)).Msg("Loaded product IDs")

	return ids, nil
}

// Dedup produces the deduplicated fetch sequence and the duplicate report.
// It is synchronous and side-effect free: the full report is available
// before any network request is issued.
func (l *Loader) Dedup(ids []string) Result {
	res := Result{TotalRequested: len(ids)}

	seen := make(map[string]int, len(ids))
	var dupOrder []string

	for _, id := range ids {
		key := l.normalize(id)
		if n, ok := seen[key]; ok {
			if n == 1 {
				dupOrder = append(dupOrder, key)
			}
			seen[key] = n + 1
			continue
		}
		seen[key] = 1
		res.Unique = append(res.Unique, id)
	}

	for _, key := range dupOrder {
		res.Duplicates = append(res.Duplicates, Duplicate{ID: key, Extra: seen[key] - 1})
	}

	if len(res.Duplicates) > 0 {
		l.logger.Warn().
			Int("duplicate_ids", len(res.Duplicates)).
			Int("unique_ids", len(res.Unique)).
			Msg("Duplicate IDs found in input")
	}

	return res
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
