package dto

import (
	"github.com/amdraipt/timetable-api/internal/models"
	"github.com/amdraipt/timetable-api/internal/scheduler"
)

// GenerateTimetableResponse summarises a generation run.
type GenerateTimetableResponse struct {
	Message   string                      `json:"message"`
	Requested int                         `json:"requested"`
	Placed    int                         `json:"placed"`
	Dropped   int                         `json:"dropped"`
	Entries   []models.ScheduleEntry      `json:"entries"`
	Unplaced  []scheduler.UnplacedSession `json:"unplaced"`
}
