package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openmined/solvesync/internal/events"
	"github.com/openmined/solvesync/internal/mutation"
)

const (
	// MaxRetries is how many failed deliveries a queued mutation gets before
	// the engine evicts it. Kept below outbox.MaxStoredRetries.
	MaxRetries = 3

	deliveredCacheSize = 1024
)

// SyncEngine drains the outbox against the server. It does not guard against
// concurrent runs; callers go through the connectivity detector for that.
type SyncEngine struct {
	queue     Queue
	remote    Dispatcher
	events    events.Publisher
	status    *SyncStatus
	delivered *lru.Cache[string, struct{}]
}

func NewSyncEngine(queue Queue, remote Dispatcher, pub events.Publisher, status *SyncStatus) (*SyncEngine, error) {
	delivered, err := lru.New[string, struct{}](deliveredCacheSize)
	if err != nil {
		return nil, fmt.Errorf("delivered cache: %w", err)
	}
	if pub == nil {
		pub = events.Discard
	}
	if status == nil {
		status = NewSyncStatus()
	}

	return &SyncEngine{
		queue:     queue,
		remote:    remote,
		events:    pub,
		status:    status,
		delivered: delivered,
	}, nil
}

// ProcessQueue attempts every pending mutation once, in the order the queue
// returns them. A failing item never stops the rest of the batch.
func (se *SyncEngine) ProcessQueue(ctx context.Context) *SyncResult {
	result := &SyncResult{}

	items := se.queue.ListAll(ctx)
	if len(items) == 0 {
		return result
	}

	tStart := time.Now()
	se.status.SetSyncing(tStart, len(items))
	slog.Info("sync start", "pending", len(items))

	for _, q := range items {
		if ctx.Err() != nil {
			result.Interrupted = true
			slog.Warn("sync interrupted", "remaining", len(items)-result.Attempted()-result.Duplicates)
			break
		}
		se.processItem(ctx, q, result)
	}

	tTotal := time.Since(tStart)
	se.status.SetCompleted(tStart, tTotal, result)
	slog.Info("sync done",
		"success", result.SuccessCount,
		"failure", result.FailureCount,
		"deferred", result.Deferred,
		"evicted", result.Evicted,
		"duplicates", result.Duplicates,
		"tsTotal", tTotal,
	)

	if result.SuccessCount > 0 {
		se.events.Publish(events.TopicSyncCompleted, events.SyncCompleted{
			SuccessCount: result.SuccessCount,
			FailureCount: result.FailureCount,
		})
	}

	return result
}

func (se *SyncEngine) processItem(ctx context.Context, q *mutation.Queued, result *SyncResult) {
	if se.delivered.Contains(q.ID) {
		slog.Debug("sync skip delivered", "id", q.ID, "mutation", q.Name)
		se.remove(ctx, q)
		result.Duplicates++
		return
	}

	err := se.dispatch(ctx, q)
	if err == nil {
		se.delivered.Add(q.ID, struct{}{})
		se.remove(ctx, q)
		result.SuccessCount++
		return
	}

	result.FailureCount++
	switch {
	case isPermanent(err):
		slog.Error("sync evict undecodable", "id", q.ID, "mutation", q.Name, "error", err)
		se.remove(ctx, q)
		result.Evicted++
	case q.RetryCount >= MaxRetries:
		slog.Warn("sync evict", "id", q.ID, "mutation", q.Name, "retries", q.RetryCount, "error", err)
		se.remove(ctx, q)
		result.Evicted++
	default:
		slog.Warn("sync deferred", "id", q.ID, "mutation", q.Name, "retries", q.RetryCount, "error", err)
		if err := se.queue.IncrementRetry(ctx, q.ID); err != nil {
			slog.Error("sync increment retry", "id", q.ID, "error", err)
		}
		result.Deferred++
	}
}

// dispatch decodes the stored payload to validate it and sends the raw
// variables. A dispatch that started is never cancelled.
func (se *SyncEngine) dispatch(ctx context.Context, q *mutation.Queued) error {
	if _, err := q.Decode(); err != nil {
		return err
	}
	return se.remote.Execute(context.WithoutCancel(ctx), q.Name, q.Variables)
}

func (se *SyncEngine) remove(ctx context.Context, q *mutation.Queued) {
	if err := se.queue.Remove(ctx, q.ID); err != nil {
		slog.Error("sync remove", "id", q.ID, "error", err)
	}
}

// Status returns the run history tracker
func (se *SyncEngine) Status() *SyncStatus {
	return se.status
}

func isPermanent(err error) bool {
	return errors.Is(err, mutation.ErrUnknownKind) || errors.Is(err, mutation.ErrInvalidPayload)
}
