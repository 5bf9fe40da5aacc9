package outbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/solvesync/internal/mutation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueued(t *testing.T, id string) *mutation.Queued {
	t.Helper()
	q, err := mutation.NewQueued(mutation.DeleteRecord{ID: id}, time.Now())
	require.NoError(t, err)
	return q
}

func TestSqliteBackend_CRUD(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)

	q := newTestQueued(t, "rec-1")
	require.NoError(t, backend.Add(ctx, q))

	// ids are unique
	assert.Error(t, backend.Add(ctx, q))

	got, err := backend.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)
	assert.Equal(t, q.Name, got.Name)
	assert.JSONEq(t, string(q.Variables), string(got.Variables))
	assert.True(t, q.Timestamp.Equal(got.Timestamp))

	got.RetryCount = 3
	require.NoError(t, backend.Put(ctx, got))
	got, err = backend.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RetryCount)

	n, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, backend.Delete(ctx, q.ID))
	_, err = backend.Get(ctx, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, backend.Put(ctx, q), ErrNotFound)
}

func TestSqliteBackend_GetAllOrder(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)

	var want []string
	for _, id := range []string{"c", "a", "b"} {
		q := newTestQueued(t, id)
		require.NoError(t, backend.Add(ctx, q))
		want = append(want, q.ID)
	}

	items, err := backend.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, ids(items))

	require.NoError(t, backend.Clear(ctx))
	items, err = backend.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSqliteBackend_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outbox.db")

	backend, err := OpenSqliteBackend(path)
	require.NoError(t, err)
	q := newTestQueued(t, "rec-1")
	require.NoError(t, backend.Add(ctx, q))
	require.NoError(t, backend.Close())

	backend, err = OpenSqliteBackend(path)
	require.NoError(t, err)
	defer backend.Close()

	items, err := backend.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{q.ID}, ids(items))
}
