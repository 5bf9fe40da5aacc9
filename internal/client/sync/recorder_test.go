package sync

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/openmined/solvesync/internal/mutation"
	"github.com/openmined/solvesync/internal/solvesdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRemote struct {
	fakeRemote
	err error
}

func (r *failingRemote) Execute(ctx context.Context, kind mutation.Kind, vars mutation.RawJSON) error {
	r.fakeRemote.Execute(ctx, kind, vars)
	return r.err
}

func TestRecord_Delivered(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	mgr, store := setupTestManager(t, remote)

	res, err := mgr.Record(ctx, mutation.CreateRecord{Input: testRecord("r1")})
	require.NoError(t, err)
	assert.Equal(t, RecordDelivered, res.Status)
	assert.Nil(t, res.Queued)
	assert.Equal(t, 1, remote.callCount())
	assert.Zero(t, store.Count(ctx))
}

func TestRecord_QueuedOnNetworkError(t *testing.T) {
	ctx := context.Background()
	remote := &failingRemote{err: solvesdk.NewAPIError(http.StatusServiceUnavailable, solvesdk.CodeInternalError, "down")}
	mgr, store := setupTestManager(t, remote)

	m := mutation.DeleteRecord{ID: "r1"}
	res, err := mgr.Record(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, RecordQueued, res.Status)
	require.NotNil(t, res.Queued)
	assert.False(t, mgr.Online())

	items := store.ListAll(ctx)
	require.Len(t, items, 1)
	decoded, err := items[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestRecord_QueuedWhileOffline(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	mgr, store := setupTestManager(t, remote)
	mgr.ReportOffline()

	res, err := mgr.Record(ctx, mutation.CreateRecord{Input: testRecord("r1")})
	require.NoError(t, err)
	assert.Equal(t, RecordQueued, res.Status)
	require.NotNil(t, res.Queued)

	// no remote attempt while the server is known to be unreachable
	assert.Zero(t, remote.callCount())
	assert.Equal(t, 1, store.Count(ctx))
}

func TestRecord_ApplicationErrorNotQueued(t *testing.T) {
	ctx := context.Background()
	appErr := solvesdk.NewAPIError(http.StatusBadRequest, solvesdk.CodeInvalidRequest, "bad record")
	remote := &failingRemote{err: appErr}
	mgr, store := setupTestManager(t, remote)

	_, err := mgr.Record(ctx, mutation.DeleteRecord{ID: "r1"})
	assert.True(t, errors.Is(err, appErr))
	assert.Zero(t, store.Count(ctx))
}

func TestRecord_Invalid(t *testing.T) {
	mgr, _ := setupTestManager(t, &fakeRemote{})

	_, err := mgr.Record(context.Background(), mutation.DeleteRecords{})
	assert.ErrorIs(t, err, mutation.ErrInvalidPayload)

	_, err = mgr.Record(context.Background(), nil)
	assert.ErrorIs(t, err, mutation.ErrInvalidPayload)
}
