package models

import "time"

// ScheduleEntry is one placed session of a subject: a fixed (slot, room)
// booking for the subject's teacher and class group. Entries are created by
// the generator and never mutated afterwards.
type ScheduleEntry struct {
	ID         string    `db:"id" json:"id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	RoomID     string    `db:"room_id" json:"room_id"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	ClassGroup string    `db:"class_group" json:"class_group"`
	Position   int       `db:"position" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// EnrichedScheduleEntry joins a ScheduleEntry with display fields from the
// referenced records. Lookups that miss fall back to "N/A" (0 for period)
// instead of failing.
type EnrichedScheduleEntry struct {
	ID          string `json:"id"`
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	SubjectCode string `json:"subject_code"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
	TimeSlotID  string `json:"time_slot_id"`
	Day         string `json:"day"`
	Period      int    `json:"period"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	ClassGroup  string `json:"class_group"`
}
