// Package bulkimport submits large one-time imports in bounded, strictly
// sequential chunks and reports per-chunk failures for manual retry.
package bulkimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
)

// DefaultChunkSize is the number of items sent per remote call.
const DefaultChunkSize = 100

var (
	ErrInvalidChunkSize = errors.New("bulkimport: chunk size must be positive")
	ErrNilSubmit        = errors.New("bulkimport: submit func is nil")
)

// Phase names what a chunk stream imports.
type Phase string

const (
	PhaseSessions Phase = "sessions"
	PhaseSolves   Phase = "solves"
)

// SubmitFunc sends one chunk to the server.
type SubmitFunc[T any] func(ctx context.Context, chunk []T) error

// ProgressFunc receives a snapshot after every successful chunk.
type ProgressFunc func(Progress)

// Progress is a point-in-time snapshot of one phase.
type Progress struct {
	Type            Phase `json:"type"`
	CurrentChunk    int   `json:"currentChunk"`
	TotalChunks     int   `json:"totalChunks"`
	ItemsProcessed  int   `json:"itemsProcessed"`
	TotalItems      int   `json:"totalItems"`
	PercentComplete int   `json:"percentComplete"`
}

// ChunkError describes one failed chunk. ItemRange is 1-based and inclusive.
type ChunkError struct {
	ChunkIndex int    `json:"chunkIndex"`
	ItemRange  string `json:"itemRange"`
	Error      string `json:"error"`
}

// Result is the outcome of one phase, counted in chunks.
type Result struct {
	Phase        Phase        `json:"phase"`
	SuccessCount int          `json:"successCount"`
	FailureCount int          `json:"failureCount"`
	Errors       []ChunkError `json:"errors"`
	// Succeeded lists the indexes of the chunks the server accepted.
	Succeeded   []int `json:"succeededChunks"`
	TotalChunks int   `json:"totalChunks"`
	TotalItems  int   `json:"totalItems"`
}

// FailedChunks returns the indexes of the failed chunks, in order.
func (r *Result) FailedChunks() []int {
	out := make([]int, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.ChunkIndex)
	}
	return out
}

func (r *Result) Failed() bool {
	return r.FailureCount > 0
}

// Complete reports whether every chunk was accepted. An interrupted phase has
// no failures but is not complete.
func (r *Result) Complete() bool {
	return r != nil && r.SuccessCount == r.TotalChunks
}

// ChunkCount is ceil(n / chunkSize).
func ChunkCount(n, chunkSize int) int {
	if n <= 0 || chunkSize <= 0 {
		return 0
	}
	return (n + chunkSize - 1) / chunkSize
}

// ImportInChunks submits items in consecutive chunks of at most chunkSize,
// one at a time. A failed chunk is recorded and the next one still runs.
// The returned error is only set for bad arguments or a context that ended
// between chunks, in which case the partial result is returned too.
func ImportInChunks[T any](ctx context.Context, phase Phase, items []T, chunkSize int, submit SubmitFunc[T], progress ProgressFunc) (*Result, error) {
	if err := checkArgs(chunkSize, submit); err != nil {
		return nil, err
	}

	total := ChunkCount(len(items), chunkSize)
	indexes := make([]int, total)
	for i := range indexes {
		indexes[i] = i
	}

	result := &Result{Phase: phase, TotalChunks: total, TotalItems: len(items)}
	err := runChunks(ctx, phase, items, chunkSize, indexes, submit, progress, result)
	return result, err
}

// RetryFailedChunks resubmits every chunk prev did not get accepted: the ones
// that failed and the ones an interrupted run never reached. The returned
// result merges prev's successes with the outcome of the retry.
func RetryFailedChunks[T any](ctx context.Context, phase Phase, items []T, chunkSize int, prev *Result, submit SubmitFunc[T], progress ProgressFunc) (*Result, error) {
	if err := checkArgs(chunkSize, submit); err != nil {
		return nil, err
	}
	if prev == nil {
		return ImportInChunks(ctx, phase, items, chunkSize, submit, progress)
	}

	total := ChunkCount(len(items), chunkSize)
	var done []int
	for _, idx := range prev.Succeeded {
		if idx >= 0 && idx < total && !slices.Contains(done, idx) {
			done = append(done, idx)
		}
	}
	indexes := make([]int, 0, total-len(done))
	for idx := range total {
		if !slices.Contains(done, idx) {
			indexes = append(indexes, idx)
		}
	}

	result := &Result{
		Phase:        phase,
		SuccessCount: len(done),
		Succeeded:    done,
		TotalChunks:  total,
		TotalItems:   len(items),
	}
	err := runChunks(ctx, phase, items, chunkSize, indexes, submit, progress, result)
	return result, err
}

func checkArgs[T any](chunkSize int, submit SubmitFunc[T]) error {
	if chunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if submit == nil {
		return ErrNilSubmit
	}
	return nil
}

// runChunks submits the given chunk indexes in order. Progress is relative to
// the chunks being run: a full import reports positions in the whole batch, a
// retry reports positions within the retried subset.
func runChunks[T any](ctx context.Context, phase Phase, items []T, chunkSize int, indexes []int, submit SubmitFunc[T], progress ProgressFunc, result *Result) error {
	runItems := 0
	for _, idx := range indexes {
		start, end := bounds(idx, chunkSize, len(items))
		runItems += end - start
	}

	processed := 0
	for n, idx := range indexes {
		if err := ctx.Err(); err != nil {
			slog.Warn("import interrupted", "phase", phase, "chunk", idx, "remaining", len(indexes)-n)
			return err
		}

		start, end := bounds(idx, chunkSize, len(items))
		chunk := items[start:end]
		processed += len(chunk)

		// a started chunk always runs to completion
		if err := submit(context.WithoutCancel(ctx), chunk); err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, ChunkError{
				ChunkIndex: idx,
				ItemRange:  fmt.Sprintf("%d-%d", start+1, end),
				Error:      err.Error(),
			})
			slog.Warn("import chunk failed", "phase", phase, "chunk", idx, "range", fmt.Sprintf("%d-%d", start+1, end), "error", err)
			continue
		}

		result.SuccessCount++
		result.Succeeded = append(result.Succeeded, idx)
		if progress != nil {
			progress(Progress{
				Type:            phase,
				CurrentChunk:    n + 1,
				TotalChunks:     len(indexes),
				ItemsProcessed:  processed,
				TotalItems:      runItems,
				PercentComplete: percent(processed, runItems),
			})
		}
	}
	return nil
}

func bounds(idx, chunkSize, n int) (int, int) {
	start := idx * chunkSize
	return start, min(start+chunkSize, n)
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
