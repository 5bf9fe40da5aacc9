// Package mutation defines the closed set of write operations a client can
// record while offline, and the persisted form they take in the outbox.
package mutation

import (
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Kind names a remote mutation. The set is closed.
type Kind string

const (
	KindCreateRecord  Kind = "createRecord"
	KindUpdateRecord  Kind = "updateRecord"
	KindDeleteRecord  Kind = "deleteRecord"
	KindDeleteRecords Kind = "deleteRecords"

	// bulk kinds are only used by the import path and are never queued
	KindBulkCreateSessions Kind = "bulkCreateSessions"
	KindBulkCreateSolves   Kind = "bulkCreateSolves"
)

var (
	ErrUnknownKind    = errors.New("mutation: unknown kind")
	ErrInvalidPayload = errors.New("mutation: invalid payload")
)

// Valid reports whether k is one of the queueable kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCreateRecord, KindUpdateRecord, KindDeleteRecord, KindDeleteRecords:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

// Mutation is a typed, queueable write. Implementations are sealed to this package.
type Mutation interface {
	Kind() Kind
	Validate() error
	isMutation()
}

// CreateRecord creates a new timed record.
type CreateRecord struct {
	Input Record `json:"input"`
}

func (CreateRecord) Kind() Kind { return KindCreateRecord }
func (CreateRecord) isMutation() {}

func (m CreateRecord) Validate() error {
	return m.Input.Validate()
}

// UpdateRecord applies a partial update to an existing record.
type UpdateRecord struct {
	ID    string      `json:"id"`
	Patch RecordPatch `json:"input"`
}

func (UpdateRecord) Kind() Kind { return KindUpdateRecord }
func (UpdateRecord) isMutation() {}

func (m UpdateRecord) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: updateRecord: id is required", ErrInvalidPayload)
	}
	if m.Patch.IsEmpty() {
		return fmt.Errorf("%w: updateRecord: empty patch", ErrInvalidPayload)
	}
	if m.Patch.Penalty != nil && !m.Patch.Penalty.Valid() {
		return fmt.Errorf("%w: updateRecord: penalty %q", ErrInvalidPayload, *m.Patch.Penalty)
	}
	if m.Patch.DurationMs != nil && *m.Patch.DurationMs < 0 {
		return fmt.Errorf("%w: updateRecord: negative duration", ErrInvalidPayload)
	}
	return nil
}

// DeleteRecord deletes a single record.
type DeleteRecord struct {
	ID string `json:"id"`
}

func (DeleteRecord) Kind() Kind { return KindDeleteRecord }
func (DeleteRecord) isMutation() {}

func (m DeleteRecord) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: deleteRecord: id is required", ErrInvalidPayload)
	}
	return nil
}

// DeleteRecords deletes several records in one call.
type DeleteRecords struct {
	IDs []string `json:"ids"`
}

func (DeleteRecords) Kind() Kind { return KindDeleteRecords }
func (DeleteRecords) isMutation() {}

func (m DeleteRecords) Validate() error {
	if len(m.IDs) == 0 {
		return fmt.Errorf("%w: deleteRecords: ids are required", ErrInvalidPayload)
	}
	for _, id := range m.IDs {
		if id == "" {
			return fmt.Errorf("%w: deleteRecords: empty id", ErrInvalidPayload)
		}
	}
	return nil
}

// Dedup returns a copy with repeated ids removed, keeping first-seen order.
func (m DeleteRecords) Dedup() DeleteRecords {
	seen := mapset.NewThreadUnsafeSetWithSize[string](len(m.IDs))
	ids := make([]string, 0, len(m.IDs))
	for _, id := range m.IDs {
		if seen.Add(id) {
			ids = append(ids, id)
		}
	}
	return DeleteRecords{IDs: ids}
}

// Queued is a mutation persisted in the outbox, not yet confirmed by the server.
type Queued struct {
	ID         string    `json:"id"`
	Name       Kind      `json:"mutationName"`
	Variables  RawJSON   `json:"variables"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retryCount"`
}

// NewQueued encodes m into a fresh outbox entry with retryCount 0.
func NewQueued(m Mutation, now time.Time) (*Queued, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil mutation", ErrInvalidPayload)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if dr, ok := m.(DeleteRecords); ok {
		m = dr.Dedup()
	}
	vars, err := Encode(m)
	if err != nil {
		return nil, err
	}
	return &Queued{
		ID:        NewID(now),
		Name:      m.Kind(),
		Variables: vars,
		Timestamp: now,
	}, nil
}

// Decode turns the stored variables back into their typed mutation.
func (q *Queued) Decode() (Mutation, error) {
	return Decode(q.Name, q.Variables)
}

// Clone returns a deep copy.
func (q *Queued) Clone() *Queued {
	c := *q
	c.Variables = append(RawJSON(nil), q.Variables...)
	return &c
}

func (q *Queued) String() string {
	return fmt.Sprintf("%s(%s, retry=%d)", q.Name, q.ID, q.RetryCount)
}
