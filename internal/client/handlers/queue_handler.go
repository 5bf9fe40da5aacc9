package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/solvesync/internal/mutation"
)

type QueueResponse struct {
	Count    int                `json:"count"`
	Degraded bool               `json:"degraded"`
	Items    []*mutation.Queued `json:"items"`
}

type QueueHandler struct {
	queue Queue
}

func NewQueueHandler(queue Queue) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// List returns every pending mutation in delivery order
func (h *QueueHandler) List(c *gin.Context) {
	items := h.queue.ListAll(c.Request.Context())
	if items == nil {
		items = []*mutation.Queued{}
	}
	c.PureJSON(http.StatusOK, &QueueResponse{
		Count:    len(items),
		Degraded: h.queue.Degraded(),
		Items:    items,
	})
}

// Clear drops every pending mutation
func (h *QueueHandler) Clear(c *gin.Context) {
	h.queue.Clear(c.Request.Context())
	c.PureJSON(http.StatusOK, &ControlPlaneResponse{Code: CodeOk})
}

// Remove drops one pending mutation. Unknown ids are not an error.
func (h *QueueHandler) Remove(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("id is required"))
		return
	}

	if err := h.queue.Remove(c.Request.Context(), id); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}
	c.PureJSON(http.StatusOK, &ControlPlaneResponse{Code: CodeOk})
}
