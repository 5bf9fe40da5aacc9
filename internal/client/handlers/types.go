package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/openmined/solvesync/internal/client/bulkimport"
	"github.com/openmined/solvesync/internal/client/connectivity"
	"github.com/openmined/solvesync/internal/client/sync"
	"github.com/openmined/solvesync/internal/events"
	"github.com/openmined/solvesync/internal/mutation"
)

const (
	CodeOk                 string = "OK"
	ErrCodeBadRequest      string = "ERR_BAD_REQUEST"
	ErrCodeInvalidMutation string = "ERR_INVALID_MUTATION"
	ErrCodeNotFound        string = "ERR_NOT_FOUND"
	ErrCodeConflict        string = "ERR_CONFLICT"
	ErrCodeRemoteRejected  string = "ERR_REMOTE_REJECTED"
	ErrCodeRemoteError     string = "ERR_REMOTE_ERROR"
	ErrCodeUnknownError    string = "ERR_UNKNOWN_ERROR"
)

type ControlPlaneResponse struct {
	Code string `json:"code"`
}

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}

// Queue is the outbox as exposed to the control plane
type Queue interface {
	ListAll(ctx context.Context) []*mutation.Queued
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context)
	Count(ctx context.Context) int
	Degraded() bool
}

// Recorder records a user action, delivering it directly or queueing it
type Recorder interface {
	Record(ctx context.Context, m mutation.Mutation) (*sync.RecordResult, error)
}

// SyncController is the sync manager as exposed to the control plane
type SyncController interface {
	TriggerSync(ctx context.Context) connectivity.TriggerResult
	NotifyOnline(ctx context.Context) connectivity.TriggerResult
	Status() sync.StatusSnapshot
	Online() bool
}

// Importer runs bulk imports
type Importer interface {
	Import(ctx context.Context, batch *bulkimport.Batch) (*bulkimport.Report, error)
	RetryFailed(ctx context.Context) (*bulkimport.Report, error)
	Last() *bulkimport.Report
}

// EventSource is the subscribe side of the event bus
type EventSource interface {
	SubscribeAll() <-chan *events.Event
	Unsubscribe(ch <-chan *events.Event)
}
