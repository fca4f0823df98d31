package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amdraipt/timetable-api/internal/middleware"
	"github.com/amdraipt/timetable-api/internal/service"
	"github.com/amdraipt/timetable-api/pkg/response"
)

// TimetableHandler exposes generation, retrieval and export of the weekly timetable.
type TimetableHandler struct {
	timetable *service.TimetableService
}

// NewTimetableHandler creates a timetable handler.
func NewTimetableHandler(timetable *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{timetable: timetable}
}

// Generate builds a fresh timetable from the current master data.
// @Summary Generate a new timetable
// @Description Runs the scheduler against all teachers, subjects, rooms and time slots and replaces the stored timetable
// @Tags timetable
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.GenerateTimetableResponse}
// @Failure 400 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	result, err := h.timetable.Generate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Get returns the enriched timetable with names resolved.
// @Summary Get the current timetable
// @Description Returns every scheduled session with teacher, subject and room names resolved
// @Tags timetable
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.EnrichedScheduleEntry}
// @Router /timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	start := time.Now()

	entries, cacheHit, err := h.timetable.Enriched(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.StampDuration(c, start)

	response.JSON(c, http.StatusOK, entries, nil, meta)
}

// ExportCSV streams the timetable as a CSV attachment.
// @Summary Export the timetable as CSV
// @Tags timetable
// @Produce text/csv
// @Success 200 {string} string "CSV payload"
// @Router /timetable/export/csv [get]
func (h *TimetableHandler) ExportCSV(c *gin.Context) {
	payload, err := h.timetable.ExportCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="timetable.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}
