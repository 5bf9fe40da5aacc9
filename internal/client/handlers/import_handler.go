package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/solvesync/internal/client/bulkimport"
	"github.com/openmined/solvesync/internal/mutation"
)

type ImportHandler struct {
	importer Importer
}

func NewImportHandler(importer Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// Import runs a two-phase import of the posted batch and returns its report.
// Failed chunks are reported, not returned as errors.
func (h *ImportHandler) Import(c *gin.Context) {
	var batch bulkimport.Batch
	if err := c.ShouldBindJSON(&batch); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	report, err := h.importer.Import(c.Request.Context(), &batch)
	h.respond(c, report, err)
}

// Retry resubmits the failed chunks of the last import.
func (h *ImportHandler) Retry(c *gin.Context) {
	report, err := h.importer.RetryFailed(c.Request.Context())
	h.respond(c, report, err)
}

func (h *ImportHandler) Last(c *gin.Context) {
	report := h.importer.Last()
	if report == nil {
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, errors.New("no import has run"))
		return
	}
	c.PureJSON(http.StatusOK, report)
}

func (h *ImportHandler) respond(c *gin.Context, report *bulkimport.Report, err error) {
	switch {
	case err == nil:
		c.PureJSON(http.StatusOK, report)
	case errors.Is(err, bulkimport.ErrImportRunning):
		AbortWithError(c, http.StatusConflict, ErrCodeConflict, err)
	case errors.Is(err, bulkimport.ErrNothingToRetry):
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, err)
	case errors.Is(err, bulkimport.ErrEmptyBatch),
		errors.Is(err, bulkimport.ErrDuplicateID),
		errors.Is(err, mutation.ErrInvalidPayload):
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
	default:
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
	}
}
