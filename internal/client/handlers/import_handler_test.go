package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/openmined/solvesync/internal/client/bulkimport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBatch = `{
	"sessions": [{"id": "s1", "name": "3x3", "createdAt": "2024-05-01T10:00:00Z"}],
	"solves": [{"id": "r1", "sessionId": "s1", "durationMs": 9000, "recordedAt": "2024-05-01T10:01:00Z"}]
}`

func TestImportHandler_Import(t *testing.T) {
	imp := &fakeImporter{report: &bulkimport.Report{ID: "run-1"}}
	h := NewImportHandler(imp)

	w := serve(t, h.Import, http.MethodPost, "/v1/import", "/v1/import", testBatch)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "run-1", decodeBody[bulkimport.Report](t, w).ID)

	require.NotNil(t, imp.got)
	assert.Len(t, imp.got.Sessions, 1)
	assert.Len(t, imp.got.Solves, 1)
	assert.Equal(t, int64(9000), imp.got.Solves[0].DurationMs)
}

func TestImportHandler_ImportErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"empty batch", `{"sessions":[],"solves":[]}`, nil, http.StatusBadRequest},
		{"duplicate ids", `{"sessions":[{"id":"s1","name":"a"},{"id":"s1","name":"b"}]}`, nil, http.StatusBadRequest},
		{"running", testBatch, bulkimport.ErrImportRunning, http.StatusConflict},
		{"interrupted", testBatch, errors.New("context canceled"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewImportHandler(&fakeImporter{err: tt.err})
			w := serve(t, h.Import, http.MethodPost, "/v1/import", "/v1/import", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestImportHandler_Retry(t *testing.T) {
	h := NewImportHandler(&fakeImporter{err: bulkimport.ErrNothingToRetry})
	w := serve(t, h.Retry, http.MethodPost, "/v1/import/retry", "/v1/import/retry", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeNotFound, decodeBody[ControlPlaneError](t, w).ErrorCode)

	h = NewImportHandler(&fakeImporter{report: &bulkimport.Report{ID: "run-2", Retry: true}})
	w = serve(t, h.Retry, http.MethodPost, "/v1/import/retry", "/v1/import/retry", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[bulkimport.Report](t, w).Retry)
}

func TestImportHandler_Last(t *testing.T) {
	h := NewImportHandler(&fakeImporter{})
	w := serve(t, h.Last, http.MethodGet, "/v1/import/last", "/v1/import/last", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	h = NewImportHandler(&fakeImporter{last: &bulkimport.Report{ID: "run-1"}})
	w = serve(t, h.Last, http.MethodGet, "/v1/import/last", "/v1/import/last", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "run-1", decodeBody[bulkimport.Report](t, w).ID)
}
