package outbox

import (
	"context"
	"errors"

	"github.com/openmined/solvesync/internal/mutation"
)

var (
	ErrNotFound        = errors.New("outbox: not found")
	ErrPrimaryDisabled = errors.New("outbox: primary store unavailable")
)

// Backend is the durable key-value store holding pending mutations, keyed by id.
type Backend interface {
	Add(ctx context.Context, q *mutation.Queued) error
	// GetAll returns every entry in insertion order
	GetAll(ctx context.Context) ([]*mutation.Queued, error)
	// Get returns ErrNotFound for a missing id
	Get(ctx context.Context, id string) (*mutation.Queued, error)
	Put(ctx context.Context, q *mutation.Queued) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// disabledBackend stands in when the primary store could not be opened.
type disabledBackend struct{}

func (disabledBackend) Add(context.Context, *mutation.Queued) error { return ErrPrimaryDisabled }
func (disabledBackend) GetAll(context.Context) ([]*mutation.Queued, error) {
	return nil, ErrPrimaryDisabled
}
func (disabledBackend) Get(context.Context, string) (*mutation.Queued, error) {
	return nil, ErrPrimaryDisabled
}
func (disabledBackend) Put(context.Context, *mutation.Queued) error { return ErrPrimaryDisabled }
func (disabledBackend) Delete(context.Context, string) error       { return ErrPrimaryDisabled }
func (disabledBackend) Clear(context.Context) error                { return ErrPrimaryDisabled }
func (disabledBackend) Count(context.Context) (int, error)         { return 0, ErrPrimaryDisabled }
