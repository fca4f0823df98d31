package scheduler

import (
	"math/rand"

	"github.com/amdraipt/timetable-api/internal/models"
)

// bookingKind distinguishes the three hard-conflict dimensions.
type bookingKind string

const (
	bookTeacher bookingKind = "teacher"
	bookClass   bookingKind = "class"
	bookRoom    bookingKind = "room"
)

// bookingIndex tracks which slot ids each teacher, class group and room
// already occupy. Reservations happen only when a placement commits.
type bookingIndex map[bookingKind]map[string]map[string]struct{}

func (b bookingIndex) occupied(kind bookingKind, key, slotID string) bool {
	_, ok := b[kind][key][slotID]
	return ok
}

func (b bookingIndex) reserve(kind bookingKind, key, slotID string) {
	byKey := b[kind]
	if byKey == nil {
		byKey = make(map[string]map[string]struct{})
		b[kind] = byKey
	}
	slots := byKey[key]
	if slots == nil {
		slots = make(map[string]struct{})
		byKey[key] = slots
	}
	slots[slotID] = struct{}{}
}

// loadCounters feed the soft-constraint score. Missing keys read as zero,
// matching zero-initialization on first access.
type loadCounters struct {
	teacherDay    map[string]map[string]int // teacher id -> day -> sessions
	teacherPeriod map[string]map[int]int    // teacher id -> period -> sessions across days
	subjectDay    map[string]map[string]int // subject id -> day -> sessions
	roomUse       map[string]int            // room id -> total bookings
}

type teacherDayKey struct {
	teacherID string
	day       string
}

// runState is the scheduling context of a single run: booking index, load
// counters and the per-teacher period sets behind the back-to-back check.
// It is created per run and discarded with it.
type runState struct {
	bookings    bookingIndex
	loads       loadCounters
	busyPeriods map[teacherDayKey]map[int]struct{}
}

func newRunState() *runState {
	return &runState{
		bookings: make(bookingIndex),
		loads: loadCounters{
			teacherDay:    make(map[string]map[string]int),
			teacherPeriod: make(map[string]map[int]int),
			subjectDay:    make(map[string]map[string]int),
			roomUse:       make(map[string]int),
		},
		busyPeriods: make(map[teacherDayKey]map[int]struct{}),
	}
}

// hasConflict reports whether the subject's teacher or class group is
// already booked at the slot. Room availability is not part of the hard
// check; it is resolved per candidate by pickRoom.
func (st *runState) hasConflict(subject models.Subject, slot models.TimeSlot) bool {
	return st.bookings.occupied(bookTeacher, subject.TeacherID, slot.ID) ||
		st.bookings.occupied(bookClass, subject.ClassGroup, slot.ID)
}

// score computes the desirability of placing the subject at the slot. Lower
// is better. Callers must filter hard conflicts first.
func (st *runState) score(subject models.Subject, slot models.TimeSlot, w Weights, rng *rand.Rand) float64 {
	s := w.SubjectSpread * float64(st.loads.subjectDay[subject.ID][slot.Day])
	s += w.TeacherSpread * float64(st.loads.teacherDay[subject.TeacherID][slot.Day])
	if st.hasAdjacent(subject.TeacherID, slot.Day, slot.Period) {
		s += w.Consecutive
	}
	s += w.PeriodRepeat * float64(st.loads.teacherPeriod[subject.TeacherID][slot.Period])
	s += rng.Float64()
	return s
}

// hasAdjacent reports whether the teacher already has a committed session in
// the neighbouring period on the same day.
func (st *runState) hasAdjacent(teacherID, day string, period int) bool {
	periods := st.busyPeriods[teacherDayKey{teacherID: teacherID, day: day}]
	if len(periods) == 0 {
		return false
	}
	if _, ok := periods[period-1]; ok {
		return true
	}
	_, ok := periods[period+1]
	return ok
}

// pickRoom returns the least-used room that is free at the slot. Ties keep
// the earliest room in input order. The second return is false when every
// room is taken.
func (st *runState) pickRoom(rooms []models.Room, slotID string) (models.Room, bool) {
	var best models.Room
	bestUse := -1
	found := false
	for _, room := range rooms {
		if st.bookings.occupied(bookRoom, room.ID, slotID) {
			continue
		}
		use := st.loads.roomUse[room.ID]
		if !found || use < bestUse {
			best = room
			bestUse = use
			found = true
		}
	}
	return best, found
}

// commit reserves the entry's teacher, class group and room at the slot and
// bumps all four load counters, as one unit.
func (st *runState) commit(entry models.ScheduleEntry, slot models.TimeSlot) {
	st.bookings.reserve(bookTeacher, entry.TeacherID, slot.ID)
	st.bookings.reserve(bookClass, entry.ClassGroup, slot.ID)
	st.bookings.reserve(bookRoom, entry.RoomID, slot.ID)

	bumpByDay(st.loads.teacherDay, entry.TeacherID, slot.Day)
	bumpByPeriod(st.loads.teacherPeriod, entry.TeacherID, slot.Period)
	bumpByDay(st.loads.subjectDay, entry.SubjectID, slot.Day)
	st.loads.roomUse[entry.RoomID]++

	key := teacherDayKey{teacherID: entry.TeacherID, day: slot.Day}
	if st.busyPeriods[key] == nil {
		st.busyPeriods[key] = make(map[int]struct{})
	}
	st.busyPeriods[key][slot.Period] = struct{}{}
}

func bumpByDay(m map[string]map[string]int, key, day string) {
	if m[key] == nil {
		m[key] = make(map[string]int)
	}
	m[key][day]++
}

func bumpByPeriod(m map[string]map[int]int, key string, period int) {
	if m[key] == nil {
		m[key] = make(map[int]int)
	}
	m[key][period]++
}
