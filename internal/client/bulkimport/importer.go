package bulkimport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/solvesync/internal/events"
	"github.com/openmined/solvesync/internal/mutation"
)

var (
	ErrImportRunning  = errors.New("bulkimport: an import is already running")
	ErrNothingToRetry = errors.New("bulkimport: no failed chunks to retry")
)

// Remote is the server side of a bulk import.
type Remote interface {
	BulkCreateSessions(ctx context.Context, sessions []mutation.Session) (int, error)
	BulkCreateSolves(ctx context.Context, records []mutation.Record) (int, error)
}

// Report is the outcome of a two-phase import or of a retry of one.
type Report struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	Sessions      *Result   `json:"sessions"`
	Solves        *Result   `json:"solves,omitempty"`
	SolvesSkipped bool      `json:"solvesSkipped"`
	Retry         bool      `json:"retry"`
	Interrupted   bool      `json:"interrupted,omitempty"`
}

// Succeeded reports whether every chunk of both phases went through.
func (r *Report) Succeeded() bool {
	return !r.Interrupted && !r.SolvesSkipped &&
		r.Sessions.Complete() && r.Solves.Complete()
}

// Importer runs two-phase imports, one at a time, and keeps the last batch
// in memory for an explicit retry.
type Importer struct {
	remote    Remote
	events    events.Publisher
	chunkSize int
	progress  ProgressFunc
	onSuccess func(ctx context.Context)

	muRun     sync.Mutex
	mu        sync.RWMutex
	lastBatch *Batch
	last      *Report
}

type ImporterOption func(*Importer)

func WithChunkSize(n int) ImporterOption {
	return func(i *Importer) {
		if n > 0 {
			i.chunkSize = n
		}
	}
}

// WithPublisher publishes import.progress and import.completed.
func WithPublisher(p events.Publisher) ImporterOption {
	return func(i *Importer) {
		i.events = p
	}
}

// WithProgress receives every progress snapshot, in addition to the publisher.
func WithProgress(fn ProgressFunc) ImporterOption {
	return func(i *Importer) {
		i.progress = fn
	}
}

// WithOnSuccess runs fn after both phases fully succeed.
func WithOnSuccess(fn func(ctx context.Context)) ImporterOption {
	return func(i *Importer) {
		i.onSuccess = fn
	}
}

func NewImporter(remote Remote, opts ...ImporterOption) *Importer {
	i := &Importer{
		remote:    remote,
		events:    events.Discard,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import runs the sessions phase, then the solves phase only if every
// session chunk succeeded.
func (i *Importer) Import(ctx context.Context, batch *Batch) (*Report, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	if !i.muRun.TryLock() {
		return nil, ErrImportRunning
	}
	defer i.muRun.Unlock()

	report := &Report{ID: uuid.NewString(), StartedAt: time.Now()}
	slog.Info("import start", "id", report.ID, "sessions", len(batch.Sessions), "solves", len(batch.Solves), "chunkSize", i.chunkSize)

	var err error
	report.Sessions, err = ImportInChunks(ctx, PhaseSessions, batch.Sessions, i.chunkSize, i.submitSessions, i.onProgress)
	if err == nil {
		err = i.runSolves(ctx, batch, report, nil)
	}

	return i.finish(ctx, batch, report, err)
}

// RetryFailed resubmits the chunks the last import did not get accepted,
// including the ones an interruption left unsent. A solves phase that was
// skipped or never reached runs once every session chunk is accepted.
func (i *Importer) RetryFailed(ctx context.Context) (*Report, error) {
	i.mu.RLock()
	batch, prev := i.lastBatch, i.last
	i.mu.RUnlock()

	if batch == nil || prev == nil || prev.Succeeded() {
		return nil, ErrNothingToRetry
	}
	if !i.muRun.TryLock() {
		return nil, ErrImportRunning
	}
	defer i.muRun.Unlock()

	report := &Report{ID: uuid.NewString(), StartedAt: time.Now(), Retry: true}
	slog.Info("import retry", "id", report.ID, "previous", prev.ID)

	var err error
	report.Sessions, err = RetryFailedChunks(ctx, PhaseSessions, batch.Sessions, i.chunkSize, prev.Sessions, i.submitSessions, i.onProgress)
	if err == nil {
		var prevSolves *Result
		if !prev.SolvesSkipped {
			prevSolves = prev.Solves
		}
		err = i.runSolves(ctx, batch, report, prevSolves)
	}

	return i.finish(ctx, batch, report, err)
}

// Last returns the report of the last import or retry, if any.
func (i *Importer) Last() *Report {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.last
}

func (i *Importer) runSolves(ctx context.Context, batch *Batch, report *Report, prev *Result) error {
	if !report.Sessions.Complete() {
		slog.Warn("import solves skipped", "id", report.ID,
			"failedSessionChunks", report.Sessions.FailureCount,
			"acceptedSessionChunks", report.Sessions.SuccessCount,
			"totalSessionChunks", report.Sessions.TotalChunks,
		)
		report.SolvesSkipped = true
		return nil
	}

	var err error
	if prev != nil {
		report.Solves, err = RetryFailedChunks(ctx, PhaseSolves, batch.Solves, i.chunkSize, prev, i.submitSolves, i.onProgress)
	} else {
		report.Solves, err = ImportInChunks(ctx, PhaseSolves, batch.Solves, i.chunkSize, i.submitSolves, i.onProgress)
	}
	return err
}

func (i *Importer) finish(ctx context.Context, batch *Batch, report *Report, err error) (*Report, error) {
	report.FinishedAt = time.Now()
	report.Interrupted = err != nil

	i.mu.Lock()
	i.lastBatch = batch
	i.last = report
	i.mu.Unlock()

	slog.Info("import done",
		"id", report.ID,
		"succeeded", report.Succeeded(),
		"solvesSkipped", report.SolvesSkipped,
		"tsTotal", report.FinishedAt.Sub(report.StartedAt),
	)
	i.events.Publish(events.TopicImportCompleted, report)

	if report.Succeeded() && i.onSuccess != nil {
		i.onSuccess(ctx)
	}
	return report, err
}

func (i *Importer) submitSessions(ctx context.Context, chunk []mutation.Session) error {
	n, err := i.remote.BulkCreateSessions(ctx, chunk)
	if err != nil {
		return err
	}
	if n != len(chunk) {
		slog.Debug("import sessions count mismatch", "sent", len(chunk), "created", n)
	}
	return nil
}

func (i *Importer) submitSolves(ctx context.Context, chunk []mutation.Record) error {
	n, err := i.remote.BulkCreateSolves(ctx, chunk)
	if err != nil {
		return err
	}
	if n != len(chunk) {
		slog.Debug("import solves count mismatch", "sent", len(chunk), "created", n)
	}
	return nil
}

func (i *Importer) onProgress(p Progress) {
	i.events.Publish(events.TopicImportProgress, p)
	if i.progress != nil {
		i.progress(p)
	}
}
