package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/solvesync/internal/version"
)

// StatusResponse represents the health status of the client.
type StatusResponse struct {
	Status    string `json:"status"`    // health status ("ok").
	Timestamp string `json:"ts"`        // timestamp when health check was performed.
	Version   string `json:"version"`   // version of the client.
	Revision  string `json:"revision"`  // revision of the client.
	BuildDate string `json:"buildDate"` // build date of the client.
	Online    bool   `json:"online"`    // last observed connectivity to the server.
	Pending   int    `json:"pending"`   // mutations waiting in the outbox.
	Degraded  bool   `json:"degraded"`  // outbox is running on its backup mirror.
}

// StatusHandler handles status-related endpoints
type StatusHandler struct {
	queue Queue
	sync  SyncController
}

func NewStatusHandler(queue Queue, sync SyncController) *StatusHandler {
	return &StatusHandler{
		queue: queue,
		sync:  sync,
	}
}

// Status returns the status of the client
func (h *StatusHandler) Status(c *gin.Context) {
	c.PureJSON(http.StatusOK, &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		Revision:  version.Revision,
		BuildDate: version.BuildDate,
		Online:    h.sync.Online(),
		Pending:   h.queue.Count(context.WithoutCancel(c.Request.Context())),
		Degraded:  h.queue.Degraded(),
	})
}
