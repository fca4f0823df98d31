package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amdraipt/timetable-api/internal/service"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
	"github.com/amdraipt/timetable-api/pkg/response"
)

// TimeSlotHandler wires the time slot service to HTTP routes.
type TimeSlotHandler struct {
	slots *service.TimeSlotService
}

// NewTimeSlotHandler constructs a new TimeSlotHandler.
func NewTimeSlotHandler(slots *service.TimeSlotService) *TimeSlotHandler {
	return &TimeSlotHandler{slots: slots}
}

// List godoc
// @Summary List time slots in grid order
// @Tags TimeSlots
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timeslots [get]
func (h *TimeSlotHandler) List(c *gin.Context) {
	slots, err := h.slots.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Create godoc
// @Summary Create time slot
// @Tags TimeSlots
// @Accept json
// @Produce json
// @Param payload body service.CreateTimeSlotRequest true "Time slot payload"
// @Success 201 {object} response.Envelope
// @Router /timeslots [post]
func (h *TimeSlotHandler) Create(c *gin.Context) {
	var req service.CreateTimeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid time slot payload"))
		return
	}
	slot, err := h.slots.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// GenerateDefault godoc
// @Summary Replace the grid with the default Monday-Friday, six period layout
// @Tags TimeSlots
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /timeslots/generate-default [post]
func (h *TimeSlotHandler) GenerateDefault(c *gin.Context) {
	result, err := h.slots.GenerateDefault(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Delete godoc
// @Summary Delete time slot
// @Tags TimeSlots
// @Param id path string true "Time slot ID"
// @Success 204
// @Router /timeslots/{id} [delete]
func (h *TimeSlotHandler) Delete(c *gin.Context) {
	if err := h.slots.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
