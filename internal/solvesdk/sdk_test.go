package solvesdk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/solvesync/internal/mutation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Query         string          `json:"query"`
	OperationName string          `json:"operationName"`
	Variables     json.RawMessage `json:"variables"`
}

func setupTestServer(t *testing.T, handler http.HandlerFunc) *SDK {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sdk, err := New(&Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(sdk.Close)
	return sdk
}

func decodeRequest(t *testing.T, r *http.Request) capturedRequest {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var got capturedRequest
	require.NoError(t, json.Unmarshal(body, &got))
	return got
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Config{}).Validate(), ErrNoServerURL)
	assert.ErrorIs(t, (&Config{BaseURL: "not a url"}).Validate(), ErrInvalidServerURL)
	assert.ErrorIs(t, (&Config{BaseURL: "http://localhost", Timeout: -1}).Validate(), ErrInvalidTimeout)
	assert.NoError(t, (&Config{BaseURL: "http://localhost:8080"}).Validate())
}

func TestExecute_PassesVariablesVerbatim(t *testing.T) {
	var got capturedRequest
	var headers http.Header
	sdk := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathGraphQL, r.URL.Path)
		headers = r.Header.Clone()
		got = decodeRequest(t, r)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"deleteRecord":true}}`))
	})

	vars := mutation.RawJSON(`{"id":"rec-1"}`)
	require.NoError(t, sdk.Execute(context.Background(), mutation.KindDeleteRecord, vars))

	assert.Equal(t, "DeleteRecord", got.OperationName)
	assert.Contains(t, got.Query, "deleteRecord(id: $id)")
	assert.JSONEq(t, `{"id":"rec-1"}`, string(got.Variables))
	assert.Equal(t, UserAgent, headers.Get(HeaderUserAgent))
	assert.NotEmpty(t, headers.Get(HeaderSolveVersion))
}

func TestExecute_UnknownKind(t *testing.T) {
	sdk := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	err := sdk.Execute(context.Background(), mutation.Kind("renameRecord"), mutation.RawJSON(`{}`))
	assert.ErrorIs(t, err, mutation.ErrUnknownKind)
}

func TestExecute_GraphQLError(t *testing.T) {
	sdk := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":null,"errors":[{"message":"record not found","extensions":{"code":"NOT_FOUND"}}]}`))
	})

	err := sdk.ExecuteMutation(context.Background(), mutation.DeleteRecord{ID: "rec-1"})
	require.Error(t, err)

	var gqlErr *GraphQLError
	require.True(t, errors.As(err, &gqlErr))
	assert.Equal(t, "NOT_FOUND", gqlErr.ErrorCode())
	assert.Equal(t, "record not found", gqlErr.ErrorMessage())
	assert.False(t, IsNetworkError(err))
}

func TestExecute_HTTPErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		network bool
		code    string
	}{
		{"bad request", http.StatusBadRequest, `{"code":"E_INVALID_REQUEST","error":"bad input"}`, false, CodeInvalidRequest},
		{"unauthorized", http.StatusUnauthorized, ``, false, CodeUnknownError},
		{"rate limited", http.StatusTooManyRequests, `{"code":"E_RATE_LIMITED","error":"slow down"}`, true, CodeRateLimited},
		{"server error", http.StatusInternalServerError, `oops`, true, CodeUnknownError},
		{"unavailable", http.StatusServiceUnavailable, ``, true, CodeUnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sdk := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := sdk.Execute(context.Background(), mutation.KindDeleteRecord, mutation.RawJSON(`{"id":"x"}`))
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.code, apiErr.ErrorCode())
			assert.Equal(t, tt.network, IsNetworkError(err))
		})
	}
}

func TestExecute_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sdk, err := New(&Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	err = sdk.Execute(context.Background(), mutation.KindDeleteRecord, mutation.RawJSON(`{"id":"x"}`))
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestBulkCreateSessions(t *testing.T) {
	var got capturedRequest
	sdk := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = decodeRequest(t, r)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"bulkCreateSessions":{"count":2}}}`))
	})

	sessions := []mutation.Session{
		{ID: "s1", Name: "3x3", Puzzle: "333"},
		{ID: "s2", Name: "4x4", Puzzle: "444"},
	}
	n, err := sdk.BulkCreateSessions(context.Background(), sessions)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "BulkCreateSessions", got.OperationName)

	var vars struct {
		Input []mutation.Session `json:"input"`
	}
	require.NoError(t, json.Unmarshal(got.Variables, &vars))
	assert.Len(t, vars.Input, 2)
	assert.Equal(t, "s2", vars.Input[1].ID)

	_, err = sdk.BulkCreateSessions(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestBulkCreateSolves_MissingField(t *testing.T) {
	sdk := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{}}`))
	})

	_, err := sdk.BulkCreateSolves(context.Background(), []mutation.Record{{ID: "r1"}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestPing(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	sdk := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathHealth, r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`ok`))
	})

	assert.NoError(t, sdk.Ping(context.Background()))

	healthy.Store(false)
	err := sdk.Ping(context.Background())
	assert.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestIsNetworkError(t *testing.T) {
	assert.False(t, IsNetworkError(nil))
	assert.True(t, IsNetworkError(context.DeadlineExceeded))
	assert.False(t, IsNetworkError(context.Canceled))
	assert.False(t, IsNetworkError(errors.New("validation failed")))
	assert.True(t, IsNetworkError(errors.New("dial tcp 127.0.0.1:1: connect: connection refused")))
}
