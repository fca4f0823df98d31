package models

import "time"

// Subject represents a taught subject owned by a single teacher. The
// class group label scopes it to one group of students per week.
type Subject struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Code            string    `db:"code" json:"code,omitempty"`
	TeacherID       string    `db:"teacher_id" json:"teacher_id"`
	ClassGroup      string    `db:"class_group" json:"class_group"`
	SessionsPerWeek int       `db:"sessions_per_week" json:"sessions_per_week"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Search     string
	TeacherID  string
	ClassGroup string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
