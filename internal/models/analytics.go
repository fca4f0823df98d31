package models

// TeacherWorkload represents the weekly session count scheduled for one
// teacher. Teachers with nothing scheduled are included with zero sessions.
type TeacherWorkload struct {
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	Sessions    int    `db:"sessions" json:"sessions"`
}

// RoomUtilization represents how many of the weekly slots a room is booked
// for, with a percentage against the total slot count.
type RoomUtilization struct {
	RoomID         string  `db:"room_id" json:"room_id"`
	RoomName       string  `db:"room_name" json:"room_name"`
	Sessions       int     `db:"sessions" json:"sessions"`
	UtilizationPct float64 `db:"utilization_pct" json:"utilization_pct"`
}

// PeakHour is a (day, period) cell ranked by how many sessions occupy it.
type PeakHour struct {
	Day      string `db:"day" json:"day"`
	Period   int    `db:"period" json:"period"`
	Sessions int    `db:"sessions" json:"sessions"`
}

// TimetableAnalytics aggregates the overview numbers for the dashboard.
type TimetableAnalytics struct {
	TotalClasses    int               `json:"total_classes"`
	TeacherWorkload []TeacherWorkload `json:"teacher_workload"`
	RoomUtilization []RoomUtilization `json:"room_utilization"`
	PeakHours       []PeakHour        `json:"peak_hours"`
	FreeSlots       int               `json:"free_slots"`
}
