package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amdraipt/timetable-api/internal/dto"
	"github.com/amdraipt/timetable-api/internal/service"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
	"github.com/amdraipt/timetable-api/pkg/response"
)

// ExportHandler manages asynchronous timetable export jobs.
type ExportHandler struct {
	exports *service.ExportJobService
}

// NewExportHandler constructs the export handler.
func NewExportHandler(exports *service.ExportJobService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Create submits a new export job.
// @Summary Submit a timetable export job
// @Description Queues a CSV or PDF export of the current timetable and returns the job for polling
// @Tags exports
// @Accept json
// @Produce json
// @Param payload body dto.CreateExportRequest true "Export request"
// @Success 202 {object} response.Envelope{data=dto.ExportJobResponse}
// @Failure 400 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req dto.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	requestedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		requestedBy = claims.Username
	}

	job, err := h.exports.CreateJob(c.Request.Context(), req, requestedBy)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, job)
}

// Get returns the state of an export job.
// @Summary Get an export job
// @Description Returns job status; completed jobs include a signed download URL
// @Tags exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope{data=dto.ExportJobResponse}
// @Failure 404 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	job, err := h.exports.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, job, nil)
}

// Download streams a completed export via its signed token.
// @Summary Download an export file
// @Tags exports
// @Produce octet-stream
// @Param id path string true "Job ID"
// @Param token query string true "Signed token"
// @Param expires query int true "Token expiry (unix seconds)"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/{id}/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "expires must be a unix timestamp"))
		return
	}

	result, err := h.exports.Download(c.Request.Context(), c.Param("id"), token, expires)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
