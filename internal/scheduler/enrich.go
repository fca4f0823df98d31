package scheduler

import "github.com/amdraipt/timetable-api/internal/models"

// missingLabel substitutes display fields whose referenced record is gone.
const missingLabel = "N/A"

// Enrich joins entries with the source collections into display records.
// A dangling reference degrades the affected fields to "N/A" (0 for the
// period); it never fails the join.
func Enrich(entries []models.ScheduleEntry, teachers []models.Teacher, subjects []models.Subject, rooms []models.Room, slots []models.TimeSlot) []models.EnrichedScheduleEntry {
	teacherByID := make(map[string]models.Teacher, len(teachers))
	for _, t := range teachers {
		teacherByID[t.ID] = t
	}
	subjectByID := make(map[string]models.Subject, len(subjects))
	for _, s := range subjects {
		subjectByID[s.ID] = s
	}
	roomByID := make(map[string]models.Room, len(rooms))
	for _, r := range rooms {
		roomByID[r.ID] = r
	}
	slotByID := make(map[string]models.TimeSlot, len(slots))
	for _, s := range slots {
		slotByID[s.ID] = s
	}

	enriched := make([]models.EnrichedScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		row := models.EnrichedScheduleEntry{
			ID:          entry.ID,
			SubjectID:   entry.SubjectID,
			SubjectName: missingLabel,
			SubjectCode: missingLabel,
			TeacherID:   entry.TeacherID,
			TeacherName: missingLabel,
			RoomID:      entry.RoomID,
			RoomName:    missingLabel,
			TimeSlotID:  entry.TimeSlotID,
			Day:         missingLabel,
			StartTime:   missingLabel,
			EndTime:     missingLabel,
			ClassGroup:  entry.ClassGroup,
		}
		if subject, ok := subjectByID[entry.SubjectID]; ok {
			row.SubjectName = subject.Name
			row.SubjectCode = subject.Code
		}
		if teacher, ok := teacherByID[entry.TeacherID]; ok {
			row.TeacherName = teacher.Name
		}
		if room, ok := roomByID[entry.RoomID]; ok {
			row.RoomName = room.Name
		}
		if slot, ok := slotByID[entry.TimeSlotID]; ok {
			row.Day = slot.Day
			row.Period = slot.Period
			row.StartTime = slot.StartTime
			row.EndTime = slot.EndTime
		}
		enriched = append(enriched, row)
	}
	return enriched
}
