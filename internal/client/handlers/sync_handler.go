package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/openmined/solvesync/internal/client/connectivity"
	"github.com/openmined/solvesync/internal/client/sync"
)

const wsWriteTimeout = 10 * time.Second

type TriggerResponse struct {
	Result connectivity.TriggerResult `json:"result"`
	Status sync.StatusSnapshot        `json:"status"`
}

type SyncHandler struct {
	sync   SyncController
	events EventSource
}

func NewSyncHandler(sync SyncController, events EventSource) *SyncHandler {
	return &SyncHandler{sync: sync, events: events}
}

// Now runs a sync immediately unless one is already running or the server
// is unreachable.
func (h *SyncHandler) Now(c *gin.Context) {
	result := h.sync.TriggerSync(c.Request.Context())
	c.PureJSON(http.StatusOK, &TriggerResponse{
		Result: result,
		Status: h.sync.Status(),
	})
}

// Online forwards a platform "network is back" signal. The response is sent
// after the settle delay and the sync that followed, if any.
func (h *SyncHandler) Online(c *gin.Context) {
	result := h.sync.NotifyOnline(c.Request.Context())
	c.PureJSON(http.StatusOK, &TriggerResponse{
		Result: result,
		Status: h.sync.Status(),
	})
}

func (h *SyncHandler) Status(c *gin.Context) {
	c.PureJSON(http.StatusOK, h.sync.Status())
}

// Events streams every bus event as server sent events, named by topic.
func (h *SyncHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	eventCh := h.events.SubscribeAll()
	defer h.events.Unsubscribe(eventCh)

	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-eventCh:
			if !ok {
				return false
			}
			c.SSEvent(event.Topic, event)
			return true
		}
	})
}

// EventsWS streams every bus event over a websocket as JSON messages.
// Anything the peer sends is ignored.
func (h *SyncHandler) EventsWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		slog.Warn("events ws accept", "error", err)
		return
	}
	defer conn.CloseNow()

	eventCh := h.events.SubscribeAll()
	defer h.events.Unsubscribe(eventCh)

	ctx := conn.CloseRead(c.Request.Context())
	slog.Debug("events ws open", "remote", c.Request.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("events ws closed", "remote", c.Request.RemoteAddr)
			return
		case event, ok := <-eventCh:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutdown")
				return
			}
			ctxWrite, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(ctxWrite, conn, event)
			cancel()
			if err != nil {
				slog.Debug("events ws write", "error", err)
				return
			}
		}
	}
}
