package sync

import (
	"context"
	"log/slog"

	"github.com/openmined/solvesync/internal/mutation"
	"github.com/openmined/solvesync/internal/solvesdk"
)

// RecordStatus says where a recorded mutation ended up
type RecordStatus string

const (
	RecordDelivered RecordStatus = "delivered"
	RecordQueued    RecordStatus = "queued"
)

type RecordResult struct {
	Status RecordStatus     `json:"status"`
	Queued *mutation.Queued `json:"queued,omitempty"`
}

// Enqueuer is the write side of the outbox
type Enqueuer interface {
	Enqueue(ctx context.Context, m mutation.Mutation) (*mutation.Queued, error)
}

// Record sends m to the server right away. While the detector has the server
// marked unreachable, or when the call fails with a network error, the
// mutation is queued for the next sync instead. Any other remote error is
// returned and nothing is queued.
func (m *SyncManager) Record(ctx context.Context, mut mutation.Mutation) (*RecordResult, error) {
	if mut == nil {
		return nil, mutation.ErrInvalidPayload
	}
	if err := mut.Validate(); err != nil {
		return nil, err
	}

	if m.detector.Offline() {
		slog.Info("record offline, queued", "mutation", mut.Kind())
		return m.enqueue(ctx, mut)
	}

	vars, err := mutation.Encode(mut)
	if err != nil {
		return nil, err
	}

	err = m.remote.Execute(ctx, mut.Kind(), vars)
	if err == nil {
		return &RecordResult{Status: RecordDelivered}, nil
	}
	if !m.isNetworkError(err) {
		return nil, err
	}

	slog.Info("record unreachable, queued", "mutation", mut.Kind(), "error", err)
	m.detector.ReportOffline()
	return m.enqueue(ctx, mut)
}

func (m *SyncManager) enqueue(ctx context.Context, mut mutation.Mutation) (*RecordResult, error) {
	q, err := m.enqueuer.Enqueue(ctx, mut)
	if err != nil {
		return nil, err
	}
	return &RecordResult{Status: RecordQueued, Queued: q}, nil
}

func defaultIsNetworkError(err error) bool {
	return solvesdk.IsNetworkError(err)
}
