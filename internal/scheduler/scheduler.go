// Package scheduler builds a weekly timetable from the four resource
// collections using a single-pass randomized greedy heuristic. A run is a
// pure function of its inputs and random source: it keeps all bookkeeping in
// run-scoped state and retains nothing between calls, so concurrent runs are
// safe as long as each gets its own Config.Rand.
package scheduler

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/amdraipt/timetable-api/internal/models"
)

// Weights are the soft-constraint multipliers of the candidate score. Lower
// scores win. The defaults keep the back-to-back penalty larger than any
// realistic sum of the spread terms, and the random jitter stays below 1 so
// it only breaks exact ties.
type Weights struct {
	SubjectSpread float64
	TeacherSpread float64
	Consecutive   float64
	PeriodRepeat  float64
}

// DefaultWeights returns the tuned production weights.
func DefaultWeights() Weights {
	return Weights{SubjectSpread: 5, TeacherSpread: 3, Consecutive: 20, PeriodRepeat: 6}
}

// Config carries the tunables of one generation run. A zero Weights value
// falls back to DefaultWeights. A nil Rand gets a time-seeded source, so
// production runs differ on identical input; tests pin a seed instead.
type Config struct {
	Weights Weights
	Rand    *rand.Rand
}

// Input bundles the immutable collections a run reads. Teachers are only
// needed by Enrich; placement identifies teachers through Subject.TeacherID.
type Input struct {
	Teachers []models.Teacher
	Subjects []models.Subject
	Rooms    []models.Room
	Slots    []models.TimeSlot
}

// UnplacedSession records one required session that found no legal slot.
type UnplacedSession struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	ClassGroup  string `json:"class_group"`
	Session     int    `json:"session"`
}

// Result is the outcome of one run. Entries are in commit order. Requested
// is the clamped sum of sessions per week across all subjects, so
// Requested == len(Entries) + len(Unplaced) always holds.
type Result struct {
	Entries   []models.ScheduleEntry
	Unplaced  []UnplacedSession
	Requested int
}

// Generate runs the greedy assignment over the input collections.
//
// Subjects are shuffled and then stable-sorted by required sessions
// descending, so demanding subjects pick first while equal-demand subjects
// interleave differently each run. Every session gets a fresh shuffled slot
// permutation, keeps only slots free of teacher and class-group conflicts,
// scores and ascending-sorts them, and commits the first candidate for which
// a free room exists. Sessions with no such candidate are dropped from the
// entries and reported in Unplaced; there is no backtracking.
func Generate(in Input, cfg Config) Result {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	weights := cfg.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}

	subjects := make([]models.Subject, len(in.Subjects))
	copy(subjects, in.Subjects)
	rng.Shuffle(len(subjects), func(i, j int) {
		subjects[i], subjects[j] = subjects[j], subjects[i]
	})
	sort.SliceStable(subjects, func(i, j int) bool {
		return requiredSessions(subjects[i]) > requiredSessions(subjects[j])
	})

	state := newRunState()
	var res Result

	for _, subject := range subjects {
		sessions := requiredSessions(subject)
		res.Requested += sessions

		for n := 1; n <= sessions; n++ {
			slot, room, ok := placeSession(state, subject, in.Rooms, in.Slots, weights, rng)
			if !ok {
				res.Unplaced = append(res.Unplaced, UnplacedSession{
					SubjectID:   subject.ID,
					SubjectName: subject.Name,
					ClassGroup:  subject.ClassGroup,
					Session:     n,
				})
				continue
			}

			entry := models.ScheduleEntry{
				ID:         uuid.NewString(),
				SubjectID:  subject.ID,
				TeacherID:  subject.TeacherID,
				RoomID:     room.ID,
				TimeSlotID: slot.ID,
				ClassGroup: subject.ClassGroup,
			}
			state.commit(entry, slot)
			res.Entries = append(res.Entries, entry)
		}
	}

	return res
}

// placeSession picks the slot and room for one session, or reports that the
// session cannot be legally placed.
func placeSession(state *runState, subject models.Subject, rooms []models.Room, slots []models.TimeSlot, weights Weights, rng *rand.Rand) (models.TimeSlot, models.Room, bool) {
	shuffled := make([]models.TimeSlot, len(slots))
	copy(shuffled, slots)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	type candidate struct {
		slot  models.TimeSlot
		score float64
	}
	candidates := make([]candidate, 0, len(shuffled))
	for _, slot := range shuffled {
		if state.hasConflict(subject, slot) {
			continue
		}
		candidates = append(candidates, candidate{
			slot:  slot,
			score: state.score(subject, slot, weights, rng),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	for _, cand := range candidates {
		if room, ok := state.pickRoom(rooms, cand.slot.ID); ok {
			return cand.slot, room, true
		}
	}
	return models.TimeSlot{}, models.Room{}, false
}

// requiredSessions clamps malformed weekly session counts to one instead of
// rejecting the subject.
func requiredSessions(s models.Subject) int {
	if s.SessionsPerWeek < 1 {
		return 1
	}
	return s.SessionsPerWeek
}
