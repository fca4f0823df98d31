package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amdraipt/timetable-api/internal/models"
	"github.com/amdraipt/timetable-api/internal/service"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
	"github.com/amdraipt/timetable-api/pkg/response"
)

// RoomHandler wires the room service to HTTP routes.
type RoomHandler struct {
	rooms *service.RoomService
}

// NewRoomHandler constructs a new RoomHandler.
func NewRoomHandler(rooms *service.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// List godoc
// @Summary List rooms
// @Tags Rooms
// @Produce json
// @Param search query string false "Search by name"
// @Param room_type query string false "Filter by room type"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (name,room_type,capacity,created_at)"
// @Param order query string false "Sort order (asc/desc)"
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	filter := models.RoomFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		RoomType:  c.Query("room_type"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	rooms, pagination, err := h.rooms.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, pagination)
}

// Get godoc
// @Summary Get room detail
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Create godoc
// @Summary Create room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body service.CreateRoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Router /rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// Update godoc
// @Summary Update room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body service.UpdateRoomRequest true "Room payload"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id} [put]
func (h *RoomHandler) Update(c *gin.Context) {
	var req service.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}
	room, err := h.rooms.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Delete godoc
// @Summary Delete room
// @Tags Rooms
// @Param id path string true "Room ID"
// @Success 204
// @Router /rooms/{id} [delete]
func (h *RoomHandler) Delete(c *gin.Context) {
	if err := h.rooms.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
