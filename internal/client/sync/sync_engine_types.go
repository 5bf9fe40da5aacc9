package sync

import (
	"context"
	"fmt"

	"github.com/openmined/solvesync/internal/mutation"
)

// Dispatcher sends one stored mutation to the server.
type Dispatcher interface {
	Execute(ctx context.Context, kind mutation.Kind, vars mutation.RawJSON) error
}

// Queue is the part of the outbox the engine drains.
type Queue interface {
	ListAll(ctx context.Context) []*mutation.Queued
	Remove(ctx context.Context, id string) error
	IncrementRetry(ctx context.Context, id string) error
	Count(ctx context.Context) int
}

// SyncResult aggregates the outcome of one ProcessQueue run.
// FailureCount is Deferred plus Evicted.
type SyncResult struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
	// Deferred failures stay queued with an incremented retry count
	Deferred int `json:"deferred"`
	// Evicted failures were removed for good
	Evicted int `json:"evicted"`
	// Duplicates were already delivered by this process and removed without dispatch
	Duplicates int `json:"duplicates"`
	// Interrupted is set when the context ended before every item was attempted
	Interrupted bool `json:"interrupted,omitempty"`
}

func (r *SyncResult) Attempted() int {
	return r.SuccessCount + r.FailureCount
}

func (r *SyncResult) String() string {
	return fmt.Sprintf("success=%d failure=%d deferred=%d evicted=%d duplicates=%d",
		r.SuccessCount, r.FailureCount, r.Deferred, r.Evicted, r.Duplicates)
}
