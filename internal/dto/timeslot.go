package dto

import "github.com/amdraipt/timetable-api/internal/models"

// GenerateDefaultSlotsResponse reports the regenerated weekly grid.
type GenerateDefaultSlotsResponse struct {
	Count int               `json:"count"`
	Slots []models.TimeSlot `json:"slots"`
}
