package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amdraipt/timetable-api/internal/middleware"
	"github.com/amdraipt/timetable-api/internal/service"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
	"github.com/amdraipt/timetable-api/pkg/response"
)

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview returns the timetable analytics snapshot.
// @Summary Timetable analytics overview
// @Description Aggregated teacher workload, room usage, peak hours and free slot counts for the stored timetable
// @Tags analytics
// @Produce json
// @Success 200 {object} response.Envelope{data=models.TimetableAnalytics}
// @Router /analytics [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}

	start := time.Now()
	overview, cacheHit, err := h.analytics.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.StampDuration(c, start)
	response.JSON(c, http.StatusOK, overview, nil, meta)
}
