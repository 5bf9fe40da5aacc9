// Package outbox is the durable queue of mutations not yet confirmed by the
// server. Storage failures never reach callers: every operation degrades to
// the backup mirror when the primary store fails.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/openmined/solvesync/internal/events"
	"github.com/openmined/solvesync/internal/mutation"
)

// MaxStoredRetries is the highest retryCount an entry may hold. An increment
// past it evicts the entry.
const MaxStoredRetries = 5

var ErrEmptyID = errors.New("outbox: empty id")

// Store is the outbox. Safe for use from multiple goroutines, but read-modify-write
// sequences are not atomic across calls.
type Store struct {
	primary  Backend
	mirror   *Mirror
	events   events.Publisher
	now      func() time.Time
	degraded atomic.Bool
}

type StoreOption func(*Store)

// WithPublisher publishes queue.changed after every change.
func WithPublisher(p events.Publisher) StoreOption {
	return func(s *Store) {
		s.events = p
	}
}

// WithClock overrides the enqueue clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store over primary and mirror. A nil primary runs the
// store on the mirror alone.
func NewStore(primary Backend, mirror *Mirror, opts ...StoreOption) *Store {
	if primary == nil {
		primary = disabledBackend{}
	}
	s := &Store{
		primary: primary,
		mirror:  mirror,
		events:  events.Discard,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open replays changes that a previous run could only write to the mirror.
func (s *Store) Open(ctx context.Context) {
	snap, err := s.mirror.Load()
	if err != nil {
		slog.Warn("outbox mirror unreadable", "error", err)
		return
	}
	if snap.Degraded {
		s.degraded.Store(true)
		s.Recover(ctx)
	}
}

// Enqueue appends m with retryCount 0. Only an invalid mutation returns an error.
func (s *Store) Enqueue(ctx context.Context, m mutation.Mutation) (*mutation.Queued, error) {
	q, err := mutation.NewQueued(m, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.primary.Add(ctx, q); err != nil {
		slog.Warn("outbox enqueue fallback to mirror", "id", q.ID, "mutation", q.Name, "error", err)
		s.updateMirror(func(snap *Snapshot) {
			snap.Items = append(snap.Items, q)
			snap.markDirty(q.ID)
		})
	} else {
		s.refreshMirror(ctx)
	}

	slog.Debug("outbox enqueue", "id", q.ID, "mutation", q.Name)
	s.notify(ctx)
	return q, nil
}

// ListAll returns every pending mutation, in insertion order when read from the primary.
func (s *Store) ListAll(ctx context.Context) []*mutation.Queued {
	s.recoverIfDegraded(ctx)

	items, err := s.primary.GetAll(ctx)
	if err == nil {
		return items
	}

	slog.Warn("outbox list fallback to mirror", "error", err)
	snap, err := s.mirror.Load()
	if err != nil {
		slog.Error("outbox mirror load", "error", err)
		return nil
	}
	return snap.Items
}

// Remove deletes one mutation. Removing an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}

	if err := s.primary.Delete(ctx, id); err != nil {
		slog.Warn("outbox remove fallback to mirror", "id", id, "error", err)
		s.updateMirror(func(snap *Snapshot) {
			snap.Items = withoutID(snap.Items, id)
			snap.markRemoved(id)
		})
	} else {
		s.refreshMirror(ctx)
	}

	s.notify(ctx)
	return nil
}

// Clear deletes every mutation and the mirror contents.
func (s *Store) Clear(ctx context.Context) {
	if err := s.primary.Clear(ctx); err != nil {
		slog.Warn("outbox clear primary", "error", err)
	}
	if err := s.mirror.Clear(); err != nil {
		slog.Warn("outbox clear mirror", "error", err)
	}
	s.degraded.Store(false)
	slog.Info("outbox cleared")
	s.notify(ctx)
}

// Count returns the number of pending mutations.
func (s *Store) Count(ctx context.Context) int {
	s.recoverIfDegraded(ctx)

	n, err := s.primary.Count(ctx)
	if err == nil {
		return n
	}

	snap, err := s.mirror.Load()
	if err != nil {
		slog.Error("outbox mirror load", "error", err)
		return 0
	}
	return len(snap.Items)
}

// IncrementRetry bumps retryCount for id. If the new count exceeds
// MaxStoredRetries the entry is deleted instead.
func (s *Store) IncrementRetry(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}

	err := s.incrementPrimary(ctx, id)
	switch {
	case err == nil:
		s.refreshMirror(ctx)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		slog.Warn("outbox retry fallback to mirror", "id", id, "error", err)
		s.updateMirror(func(snap *Snapshot) {
			q := snap.item(id)
			if q == nil {
				return
			}
			if q.RetryCount+1 > MaxStoredRetries {
				slog.Warn("outbox evict", "id", id, "mutation", q.Name, "retries", q.RetryCount)
				snap.Items = withoutID(snap.Items, id)
				snap.markRemoved(id)
				return
			}
			q.RetryCount++
			snap.markDirty(id)
		})
	}

	s.notify(ctx)
	return nil
}

func (s *Store) incrementPrimary(ctx context.Context, id string) error {
	q, err := s.primary.Get(ctx, id)
	if err != nil {
		return err
	}

	q.RetryCount++
	if q.RetryCount > MaxStoredRetries {
		slog.Warn("outbox evict", "id", id, "mutation", q.Name, "retries", q.RetryCount-1)
		return s.primary.Delete(ctx, id)
	}
	return s.primary.Put(ctx, q)
}

// Recover replays the changes made on the mirror alone while the primary was
// failing: dirty entries are written to the primary with their mirror state and
// removed ids are deleted. Entries the primary already owns are never copied
// back, so a delete that reached the primary stays deleted. Returns how many
// entries were written.
func (s *Store) Recover(ctx context.Context) int {
	snap, err := s.mirror.Load()
	if err != nil {
		slog.Warn("outbox recover: mirror unreadable", "error", err)
		return 0
	}

	for _, id := range snap.Removed {
		if err := s.primary.Delete(ctx, id); err != nil {
			slog.Debug("outbox recover: primary unavailable", "error", err)
			return 0
		}
	}

	written := 0
	for _, id := range snap.Dirty {
		q := snap.item(id)
		if q == nil {
			continue
		}
		err := s.primary.Put(ctx, q)
		if errors.Is(err, ErrNotFound) {
			err = s.primary.Add(ctx, q)
		}
		if err != nil {
			slog.Debug("outbox recover: primary unavailable", "id", id, "error", err)
			return written
		}
		written++
	}

	items, err := s.primary.GetAll(ctx)
	if err != nil {
		slog.Debug("outbox recover: primary unavailable", "error", err)
		return written
	}
	if err := s.mirror.Save(&Snapshot{Items: items}); err != nil {
		// the journal stays in the mirror and is replayed again later
		slog.Warn("outbox recover: mirror save", "error", err)
		return written
	}

	s.degraded.Store(false)
	if written > 0 || len(snap.Removed) > 0 {
		slog.Info("outbox recovered", "written", written, "removed", len(snap.Removed))
	}
	return written
}

// Degraded reports whether the mirror holds writes the primary has not seen.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

func (s *Store) recoverIfDegraded(ctx context.Context) {
	if s.degraded.Load() {
		s.Recover(ctx)
	}
}

// refreshMirror rewrites the mirror from the primary. While the mirror still
// carries unreplayed changes it is left alone.
func (s *Store) refreshMirror(ctx context.Context) {
	s.recoverIfDegraded(ctx)
	if s.degraded.Load() {
		slog.Warn("outbox mirror refresh skipped, recovery pending")
		return
	}

	items, err := s.primary.GetAll(ctx)
	if err != nil {
		slog.Warn("outbox mirror refresh skipped", "error", err)
		return
	}
	if err := s.mirror.Save(&Snapshot{Items: items}); err != nil {
		slog.Warn("outbox mirror refresh", "error", err)
	}
}

// updateMirror applies fn to the mirror contents directly and marks the store degraded.
func (s *Store) updateMirror(fn func(*Snapshot)) {
	s.degraded.Store(true)

	snap, err := s.mirror.Load()
	if err != nil {
		slog.Error("outbox mirror load", "error", err)
		snap = &Snapshot{}
	}
	fn(snap)
	snap.Degraded = true
	if err := s.mirror.Save(snap); err != nil {
		slog.Error("outbox mirror write failed, change lost", "error", err)
	}
}

func (s *Store) notify(ctx context.Context) {
	s.events.Publish(events.TopicQueueChanged, events.QueueChanged{Count: s.Count(ctx)})
}

func withoutID(items []*mutation.Queued, id string) []*mutation.Queued {
	out := items[:0]
	for _, q := range items {
		if q.ID != id {
			out = append(out, q)
		}
	}
	return out
}

func (s *Store) String() string {
	return fmt.Sprintf("outbox(degraded=%t)", s.degraded.Load())
}
