package models

import "time"

// Weekdays lists the scheduling days in grid order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// DayIndex returns the position of a weekday in the grid, or -1 when the
// value is not a known scheduling day.
func DayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

// TimeSlot represents one cell of the weekly grid. Period numbers are only
// meaningful relative to other slots on the same day.
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	Day       string    `db:"day" json:"day"`
	Period    int       `db:"period" json:"period"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
