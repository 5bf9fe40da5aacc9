package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/solvesync/internal/client/connectivity"
	"github.com/openmined/solvesync/internal/events"
)

// Remote is the server as seen by the sync manager
type Remote interface {
	Dispatcher
	connectivity.Prober
}

// Outbox is the queue the manager drains and records into
type Outbox interface {
	Queue
	Enqueuer
}

// SyncManager owns the sync engine and the connectivity detector that triggers it
type SyncManager struct {
	queue          Queue
	enqueuer       Enqueuer
	remote         Remote
	engine         *SyncEngine
	detector       *connectivity.Detector
	isNetworkError func(error) bool
}

func NewManager(outbox Outbox, remote Remote, pub events.Publisher, cfg connectivity.Config) (*SyncManager, error) {
	engine, err := NewSyncEngine(outbox, remote, pub, NewSyncStatus())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync engine: %w", err)
	}

	m := &SyncManager{
		queue:          outbox,
		enqueuer:       outbox,
		remote:         remote,
		engine:         engine,
		isNetworkError: defaultIsNetworkError,
	}
	m.detector = connectivity.NewDetector(cfg, remote, outbox, m.runSync, pub)
	return m, nil
}

func (m *SyncManager) Start(ctx context.Context) error {
	slog.Info("sync manager start")
	if err := m.detector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connectivity detector: %w", err)
	}
	return nil
}

// Stop waits for the probe loop to exit. The caller cancels the context given to Start first.
func (m *SyncManager) Stop() error {
	slog.Info("sync manager stop")
	m.detector.Stop()
	return nil
}

// TriggerSync asks for a sync now. It is dropped if one is already running.
func (m *SyncManager) TriggerSync(ctx context.Context) connectivity.TriggerResult {
	return m.detector.Wake(ctx)
}

// NotifyOnline forwards a platform online signal.
func (m *SyncManager) NotifyOnline(ctx context.Context) connectivity.TriggerResult {
	return m.detector.NotifyOnline(ctx)
}

// ReportOffline records that the server could not be reached outside a sync.
func (m *SyncManager) ReportOffline() {
	m.detector.ReportOffline()
}

func (m *SyncManager) Online() bool {
	return m.detector.Online()
}

func (m *SyncManager) Status() StatusSnapshot {
	snap := m.engine.Status().Snapshot()
	if snap.State != SyncStateSyncing {
		snap.Pending = m.queue.Count(context.Background())
	}
	return snap
}

func (m *SyncManager) runSync(ctx context.Context) {
	m.engine.ProcessQueue(ctx)
}
