package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/openmined/solvesync/internal/client/bulkimport"
	"github.com/openmined/solvesync/internal/client/connectivity"
	"github.com/openmined/solvesync/internal/client/sync"
	"github.com/openmined/solvesync/internal/mutation"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu       gosync.Mutex
	items    []*mutation.Queued
	degraded bool
}

func (q *fakeQueue) ListAll(context.Context) []*mutation.Queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*mutation.Queued(nil), q.items...)
}

func (q *fakeQueue) Remove(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items[:0]
	for _, it := range q.items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	q.items = out
	return nil
}

func (q *fakeQueue) Clear(context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

func (q *fakeQueue) Count(context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *fakeQueue) Degraded() bool { return q.degraded }

type fakeRecorder struct {
	got    []mutation.Mutation
	result *sync.RecordResult
	err    error
}

func (r *fakeRecorder) Record(_ context.Context, m mutation.Mutation) (*sync.RecordResult, error) {
	r.got = append(r.got, m)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

type fakeSync struct {
	result   connectivity.TriggerResult
	online   bool
	status   sync.StatusSnapshot
	triggers int
	notifies int
}

func (s *fakeSync) TriggerSync(context.Context) connectivity.TriggerResult {
	s.triggers++
	return s.result
}

func (s *fakeSync) NotifyOnline(context.Context) connectivity.TriggerResult {
	s.notifies++
	return s.result
}

func (s *fakeSync) Status() sync.StatusSnapshot { return s.status }
func (s *fakeSync) Online() bool                { return s.online }

type fakeImporter struct {
	got    *bulkimport.Batch
	report *bulkimport.Report
	err    error
	last   *bulkimport.Report
}

func (i *fakeImporter) Import(_ context.Context, b *bulkimport.Batch) (*bulkimport.Report, error) {
	i.got = b
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return i.report, i.err
}

func (i *fakeImporter) RetryFailed(context.Context) (*bulkimport.Report, error) {
	return i.report, i.err
}

func (i *fakeImporter) Last() *bulkimport.Report { return i.last }

func serve(t *testing.T, handler gin.HandlerFunc, method, route, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(method, route, handler)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
