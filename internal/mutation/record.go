package mutation

import (
	"fmt"
	"time"
)

// Penalty applied to a timed record.
type Penalty string

const (
	PenaltyNone    Penalty = "none"
	PenaltyPlusTwo Penalty = "+2"
	PenaltyDNF     Penalty = "dnf"
)

func (p Penalty) Valid() bool {
	switch p {
	case "", PenaltyNone, PenaltyPlusTwo, PenaltyDNF:
		return true
	}
	return false
}

// Record is a single timed event (a solve).
type Record struct {
	ID         string    `json:"id" yaml:"id"`
	SessionID  string    `json:"sessionId" yaml:"sessionId"`
	DurationMs int64     `json:"durationMs" yaml:"durationMs"`
	Penalty    Penalty   `json:"penalty,omitempty" yaml:"penalty,omitempty"`
	Scramble   string    `json:"scramble,omitempty" yaml:"scramble,omitempty"`
	Comment    string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	RecordedAt time.Time `json:"recordedAt" yaml:"recordedAt"`
}

func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: record id is required", ErrInvalidPayload)
	}
	if r.SessionID == "" {
		return fmt.Errorf("%w: record %s: session id is required", ErrInvalidPayload, r.ID)
	}
	if r.DurationMs < 0 {
		return fmt.Errorf("%w: record %s: negative duration", ErrInvalidPayload, r.ID)
	}
	if !r.Penalty.Valid() {
		return fmt.Errorf("%w: record %s: penalty %q", ErrInvalidPayload, r.ID, r.Penalty)
	}
	return nil
}

// RecordPatch holds the mutable fields of a record. Nil fields are left unchanged.
type RecordPatch struct {
	DurationMs *int64   `json:"durationMs,omitempty"`
	Penalty    *Penalty `json:"penalty,omitempty"`
	Comment    *string  `json:"comment,omitempty"`
}

func (p RecordPatch) IsEmpty() bool {
	return p.DurationMs == nil && p.Penalty == nil && p.Comment == nil
}

// Session groups records. Sessions must exist remotely before records reference them.
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Puzzle    string    `json:"puzzle,omitempty" yaml:"puzzle,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

func (s Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidPayload)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: session %s: name is required", ErrInvalidPayload, s.ID)
	}
	return nil
}
