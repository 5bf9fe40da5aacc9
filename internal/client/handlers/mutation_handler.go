package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/solvesync/internal/client/sync"
	"github.com/openmined/solvesync/internal/mutation"
	"github.com/openmined/solvesync/internal/solvesdk"
)

// RecordRequest is a user action as the UI sends it
type RecordRequest struct {
	Name      mutation.Kind    `json:"mutationName" binding:"required"`
	Variables mutation.RawJSON `json:"variables" binding:"required"`
}

type MutationHandler struct {
	recorder Recorder
}

func NewMutationHandler(recorder Recorder) *MutationHandler {
	return &MutationHandler{recorder: recorder}
}

// Record delivers a mutation or queues it when the server is unreachable.
// Responds 200 when delivered and 202 when queued.
func (h *MutationHandler) Record(c *gin.Context) {
	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	if !req.Name.Valid() {
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidMutation,
			fmt.Errorf("%w: %q", mutation.ErrUnknownKind, req.Name))
		return
	}

	m, err := mutation.Decode(req.Name, req.Variables)
	if err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidMutation, err)
		return
	}

	result, err := h.recorder.Record(c.Request.Context(), m)
	if err != nil {
		status, code := recordErrorStatus(err)
		AbortWithError(c, status, code, err)
		return
	}

	status := http.StatusOK
	if result.Status == sync.RecordQueued {
		status = http.StatusAccepted
	}
	c.PureJSON(status, result)
}

func recordErrorStatus(err error) (int, string) {
	var gqlErr *solvesdk.GraphQLError
	var apiErr *solvesdk.APIError

	switch {
	case errors.Is(err, mutation.ErrInvalidPayload), errors.Is(err, mutation.ErrUnknownKind):
		return http.StatusBadRequest, ErrCodeInvalidMutation
	case errors.As(err, &gqlErr):
		return http.StatusUnprocessableEntity, ErrCodeRemoteRejected
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return http.StatusUnprocessableEntity, ErrCodeRemoteRejected
		}
		return http.StatusBadGateway, ErrCodeRemoteError
	default:
		return http.StatusInternalServerError, ErrCodeUnknownError
	}
}
