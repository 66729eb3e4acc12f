// Package report accumulates per-run statistics, duplicate records, and
// failure records, and emits one final run report at shutdown.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tikiops/product-harvester/pkg/fetch"
	"github.com/tikiops/product-harvester/pkg/ids"
)

// FailureRecord describes one permanently failed product ID. The failure
// file written from these records is itself a valid re-submission input.
type FailureRecord struct {
	ID       string
	Kind     fetch.FailureKind
	Message  string
	Attempts int
}

// Report is the immutable summary of a completed run.
type Report struct {
	TotalRequested int
	TotalSuccess   int
	TotalFailed    int
	TotalDuplicate int
	Duplicates     []ids.Duplicate
	Failures       []FailureRecord
}

// Reporter accumulates records across a run. It is safe for concurrent use,
// although in the pipeline all records arrive through the single-threaded
// collector.
type Reporter struct {
	mu         sync.Mutex
	requested  int
	success    int
	duplicates []ids.Duplicate
	dupSeen    map[string]int
	failures   []FailureRecord
	logger     zerolog.Logger
}

// New creates a reporter.
func New() *Reporter {
	return &Reporter{
		dupSeen: make(map[string]int),
		logger:  log.With().Str("component", "report").Logger(),
	}
}

// SetRequested records the raw input size before deduplication.
func (r *Reporter) SetRequested(n int) {
	r.mu.Lock()
	r.requested = n
	r.mu.Unlock()
}

// RecordDuplicates seeds the duplicate set from the pre-flight dedup pass.
func (r *Reporter) RecordDuplicates(dups []ids.Duplicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range dups {
		r.recordDuplicateLocked(d.ID, d.Extra)
	}
}

// RecordDuplicate adds extra occurrences for one ID. Each duplicated ID is
// recorded once; repeat calls accumulate its extra-occurrence count.
func (r *Reporter) RecordDuplicate(id string, extra int) {
	r.mu.Lock()
	r.recordDuplicateLocked(id, extra)
	r.mu.Unlock()
}

func (r *Reporter) recordDuplicateLocked(id string, extra int) {
	if extra <= 0 {
		extra = 1
	}
	if i, ok := r.dupSeen[id]; ok {
		r.duplicates[i].Extra += extra
		return
	}
	r.dupSeen[id] = len(r.duplicates)
	r.duplicates = append(r.duplicates, ids.Duplicate{ID: id, Extra: extra})
}

// RecordSuccess counts one successfully fetched ID.
func (r *Reporter) RecordSuccess(id string) {
	r.mu.Lock()
	r.success++
	r.mu.Unlock()
}

// RecordFailure appends one terminal failure.
func (r *Reporter) RecordFailure(out fetch.Outcome) {
	r.mu.Lock()
	r.failures = append(r.failures, FailureRecord{
		ID:       out.ID,
		Kind:     out.Kind,
		Message:  out.Message,
		Attempts: out.Attempts,
	})
	r.mu.Unlock()
}

// Snapshot returns an immutable copy of the accumulated state.
func (r *Reporter) Snapshot() Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := Report{
		TotalRequested: r.requested,
		TotalSuccess:   r.success,
		TotalFailed:    len(r.failures),
		TotalDuplicate: len(r.duplicates),
		Duplicates:     make([]ids.Duplicate, len(r.duplicates)),
		Failures:       make([]FailureRecord, len(r.failures)),
	}
	copy(rep.Duplicates, r.duplicates)
	copy(rep.Failures, r.failures)
	return rep
}

// Emit writes the final run summary to the log. A reporting failure never
// aborts an already-completed run; file write errors degrade to a console
// message.
func (r *Reporter) Emit(failurePath, duplicatePath string) Report {
	rep := r.Snapshot()

	r.logger.Info().
		Int("total_requested", rep.TotalRequested).
		Int("total_success", rep.TotalSuccess).
		Int("total_failed", rep.TotalFailed).
		Int("total_duplicate", rep.TotalDuplicate).
		Msg("Run complete")

	if failurePath != "" && len(rep.Failures) > 0 {
		if err := rep.WriteFailures(failurePath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write failure log %s: %v\n", failurePath, err)
		} else {
			r.logger.Warn().
				Int("failures", len(rep.Failures)).
				Str("path", failurePath).
				Msg("Failure log written")
		}
	}

	if duplicatePath != "" && len(rep.Duplicates) > 0 {
		if err := rep.WriteDuplicates(duplicatePath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write duplicate log %s: %v\n", duplicatePath, err)
		} else {
			r.logger.Warn().
				Int("duplicates", len(rep.Duplicates)).
				Str("path", duplicatePath).
				Msg("Duplicate log written")
		}
	}

	return rep
}

// WriteFailures writes the failure list as CSV. The first column is the
// product ID so the file can be fed back in as an input list.
func (rep Report) WriteFailures(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"product_id", "failure_kind", "message", "attempts"}); err != nil {
		return err
	}
	for _, fr := range rep.Failures {
		if err := w.Write([]string{fr.ID, string(fr.Kind), fr.Message, strconv.Itoa(fr.Attempts)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteDuplicates writes the duplicate set as CSV with extra-occurrence
// counts.
func (rep Report) WriteDuplicates(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"product_id", "extra_occurrences"}); err != nil {
		return err
	}
	for _, d := range rep.Duplicates {
		if err := w.Write([]string{d.ID, strconv.Itoa(d.Extra)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
