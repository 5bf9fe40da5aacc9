package sync

import (
	"sync"
	"time"
)

// SyncState is the state of the sync engine
type SyncState string

const (
	SyncStateIdle      SyncState = "idle"
	SyncStateSyncing   SyncState = "syncing"
	SyncStateCompleted SyncState = "completed"
)

// SyncRun describes one finished ProcessQueue call
type SyncRun struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Result    SyncResult    `json:"result"`
}

// StatusSnapshot is a copy of SyncStatus safe to hand out
type StatusSnapshot struct {
	State     SyncState  `json:"state"`
	Pending   int        `json:"pending"`
	StartedAt time.Time  `json:"startedAt"`
	LastRun   *SyncRun   `json:"lastRun,omitempty"`
	Runs      int        `json:"runs"`
	Totals    SyncResult `json:"totals"`
}

// SyncStatus tracks the current and last sync runs
type SyncStatus struct {
	state     SyncState
	pending   int
	startedAt time.Time
	lastRun   *SyncRun
	runs      int
	totals    SyncResult
	mu        sync.RWMutex
}

func NewSyncStatus() *SyncStatus {
	return &SyncStatus{
		state: SyncStateIdle,
	}
}

// SetSyncing marks a run as started with pending items to attempt
func (s *SyncStatus) SetSyncing(startedAt time.Time, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = SyncStateSyncing
	s.startedAt = startedAt
	s.pending = pending
}

// SetCompleted records a finished run
func (s *SyncStatus) SetCompleted(startedAt time.Time, duration time.Duration, result *SyncResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = SyncStateCompleted
	s.pending = 0
	s.startedAt = time.Time{}
	s.lastRun = &SyncRun{
		StartedAt: startedAt,
		Duration:  duration,
		Result:    *result,
	}
	s.runs++
	s.totals.SuccessCount += result.SuccessCount
	s.totals.FailureCount += result.FailureCount
	s.totals.Deferred += result.Deferred
	s.totals.Evicted += result.Evicted
	s.totals.Duplicates += result.Duplicates
}

// IsSyncing reports whether a run is in progress
func (s *SyncStatus) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == SyncStateSyncing
}

func (s *SyncStatus) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{
		State:     s.state,
		Pending:   s.pending,
		StartedAt: s.startedAt,
		Runs:      s.runs,
		Totals:    s.totals,
	}
	if s.lastRun != nil {
		run := *s.lastRun
		snap.LastRun = &run
	}
	return snap
}
