package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/openmined/solvesync/internal/client/connectivity"
	"github.com/openmined/solvesync/internal/client/sync"
	"github.com/openmined/solvesync/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncHandler_Now(t *testing.T) {
	s := &fakeSync{
		result: connectivity.TriggerTriggered,
		status: sync.StatusSnapshot{State: sync.SyncStateCompleted, Runs: 1},
	}
	h := NewSyncHandler(s, events.NewBus())

	w := serve(t, h.Now, http.MethodPost, "/v1/sync/now", "/v1/sync/now", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.triggers)

	resp := decodeBody[TriggerResponse](t, w)
	assert.Equal(t, connectivity.TriggerTriggered, resp.Result)
	assert.Equal(t, sync.SyncStateCompleted, resp.Status.State)
	assert.Equal(t, 1, resp.Status.Runs)
}

func TestSyncHandler_Online(t *testing.T) {
	s := &fakeSync{result: connectivity.TriggerOffline}
	h := NewSyncHandler(s, events.NewBus())

	w := serve(t, h.Online, http.MethodPost, "/v1/sync/online", "/v1/sync/online", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.notifies)
	assert.Equal(t, connectivity.TriggerOffline, decodeBody[TriggerResponse](t, w).Result)
}

func TestSyncHandler_Status(t *testing.T) {
	s := &fakeSync{status: sync.StatusSnapshot{State: sync.SyncStateIdle, Pending: 4}}
	h := NewSyncHandler(s, events.NewBus())

	w := serve(t, h.Status, http.MethodGet, "/v1/sync/status", "/v1/sync/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decodeBody[sync.StatusSnapshot](t, w).Pending)
}

func TestSyncHandler_EventsSSE(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := events.NewBus()
	h := NewSyncHandler(&fakeSync{}, bus)

	r := gin.New()
	r.GET("/v1/events", h.Events)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	require.NoError(t, err)

	respCh := make(chan *http.Response, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			respCh <- resp
		}
	}()

	require.Eventually(t, func() bool {
		return bus.Subscribers(events.TopicAll) == 1
	}, time.Second, 5*time.Millisecond)
	bus.Publish(events.TopicQueueChanged, events.QueueChanged{Count: 3})

	var resp *http.Response
	select {
	case resp = <-respCh:
	case <-ctx.Done():
		t.Fatal("no response from event stream")
	}
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}
	assert.Contains(t, lines, "event:queue.changed")
	assert.Contains(t, lines[len(lines)-1], `"count":3`)

	cancel()
	assert.Eventually(t, func() bool {
		return bus.Subscribers(events.TopicAll) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSyncHandler_EventsWS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := events.NewBus()
	h := NewSyncHandler(&fakeSync{}, bus)

	r := gin.New()
	r.GET("/v1/events/ws", h.EventsWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		return bus.Subscribers(events.TopicAll) == 1
	}, time.Second, 5*time.Millisecond)

	bus.Publish(events.TopicSyncCompleted, events.SyncCompleted{SuccessCount: 2})

	var got struct {
		Topic   string               `json:"topic"`
		Payload events.SyncCompleted `json:"payload"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, events.TopicSyncCompleted, got.Topic)
	assert.Equal(t, 2, got.Payload.SuccessCount)

	conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool {
		return bus.Subscribers(events.TopicAll) == 0
	}, time.Second, 5*time.Millisecond)
}
