package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/amdraipt/timetable-api/internal/dto"
	"github.com/amdraipt/timetable-api/internal/models"
	"github.com/amdraipt/timetable-api/internal/scheduler"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
	"github.com/amdraipt/timetable-api/pkg/export"
)

type teacherLister interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
}

type subjectLister interface {
	ListAll(ctx context.Context) ([]models.Subject, error)
}

type roomLister interface {
	ListAll(ctx context.Context) ([]models.Room, error)
}

type slotLister interface {
	ListAll(ctx context.Context) ([]models.TimeSlot, error)
}

type timetableStore interface {
	ReplaceAll(ctx context.Context, entries []models.ScheduleEntry) error
	ListAll(ctx context.Context) ([]models.ScheduleEntry, error)
}

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

const (
	timetableCacheKey     = "timetable:enriched"
	timetableCachePattern = "timetable:*"
	analyticsCachePattern = "analytics:*"
)

// TimetableConfig tunes generation and caching.
type TimetableConfig struct {
	Weights  scheduler.Weights
	CacheTTL time.Duration
}

// TimetableService runs the generator and serves the stored schedule.
type TimetableService struct {
	teachers teacherLister
	subjects subjectLister
	rooms    roomLister
	slots    slotLister
	store    timetableStore
	cache    *CacheService
	metrics  *MetricsService
	csv      csvRenderer
	logger   *zap.Logger
	cfg      TimetableConfig
}

// NewTimetableService constructs a TimetableService.
func NewTimetableService(teachers teacherLister, subjects subjectLister, rooms roomLister, slots slotLister, store timetableStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg TimetableConfig) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		teachers: teachers,
		subjects: subjects,
		rooms:    rooms,
		slots:    slots,
		store:    store,
		cache:    cache,
		metrics:  metrics,
		csv:      export.NewCSVExporter(),
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate runs a fresh scheduling pass over the current collections and
// replaces the stored timetable with its outcome.
func (s *TimetableService) Generate(ctx context.Context) (*dto.GenerateTimetableResponse, error) {
	in, err := s.loadInput(ctx)
	if err != nil {
		return nil, err
	}
	if len(in.Teachers) == 0 || len(in.Subjects) == 0 || len(in.Rooms) == 0 || len(in.Slots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "add teachers, subjects, rooms and time slots before generating")
	}

	start := time.Now()
	result := scheduler.Generate(in, scheduler.Config{Weights: s.cfg.Weights})
	elapsed := time.Since(start)

	if err := s.store.ReplaceAll(ctx, result.Entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	}

	if s.metrics != nil {
		s.metrics.ObserveGeneration(len(result.Entries), len(result.Unplaced), elapsed)
	}
	s.invalidateCaches(ctx)

	s.logger.Info("timetable generated",
		zap.Int("requested", result.Requested),
		zap.Int("placed", len(result.Entries)),
		zap.Int("dropped", len(result.Unplaced)),
		zap.Duration("duration", elapsed))

	return &dto.GenerateTimetableResponse{
		Message:   "Timetable generated successfully",
		Requested: result.Requested,
		Placed:    len(result.Entries),
		Dropped:   len(result.Unplaced),
		Entries:   result.Entries,
		Unplaced:  result.Unplaced,
	}, nil
}

// Enriched returns the stored timetable joined with display names, served
// from cache when possible. The boolean reports a cache hit.
func (s *TimetableService) Enriched(ctx context.Context) ([]models.EnrichedScheduleEntry, bool, error) {
	var cached []models.EnrichedScheduleEntry
	if hit, err := s.cache.Get(ctx, timetableCacheKey, &cached); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read timetable cache")
	} else if hit {
		return cached, true, nil
	}

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	in, err := s.loadInput(ctx)
	if err != nil {
		return nil, false, err
	}

	enriched := scheduler.Enrich(entries, in.Teachers, in.Subjects, in.Rooms, in.Slots)
	if err := s.cache.Set(ctx, timetableCacheKey, enriched, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache enriched timetable", zap.Error(err))
	}
	return enriched, false, nil
}

// ExportCSV renders the enriched timetable into CSV bytes.
func (s *TimetableService) ExportCSV(ctx context.Context) ([]byte, error) {
	enriched, _, err := s.Enriched(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := s.csv.Render(buildTimetableTable(enriched))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, nil
}

func (s *TimetableService) loadInput(ctx context.Context) (scheduler.Input, error) {
	teachers, err := s.teachers.ListAll(ctx)
	if err != nil {
		return scheduler.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	subjects, err := s.subjects.ListAll(ctx)
	if err != nil {
		return scheduler.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	rooms, err := s.rooms.ListAll(ctx)
	if err != nil {
		return scheduler.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	slots, err := s.slots.ListAll(ctx)
	if err != nil {
		return scheduler.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	return scheduler.Input{Teachers: teachers, Subjects: subjects, Rooms: rooms, Slots: slots}, nil
}

func (s *TimetableService) invalidateCaches(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, timetableCachePattern); err != nil {
		s.logger.Warn("timetable cache invalidation failed", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, analyticsCachePattern); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
}

// buildTimetableTable lays the enriched entries out in reading order, Monday
// first, then period.
func buildTimetableTable(entries []models.EnrichedScheduleEntry) export.Table {
	ordered := make([]models.EnrichedScheduleEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := models.DayIndex(ordered[i].Day), models.DayIndex(ordered[j].Day)
		if di != dj {
			return di < dj
		}
		return ordered[i].Period < ordered[j].Period
	})

	rows := make([][]string, 0, len(ordered))
	for _, entry := range ordered {
		rows = append(rows, []string{
			entry.Day,
			strconv.Itoa(entry.Period),
			entry.StartTime,
			entry.EndTime,
			entry.ClassGroup,
			entry.SubjectName,
			entry.SubjectCode,
			entry.TeacherName,
			entry.RoomName,
		})
	}

	return export.Table{
		Headers: []string{"Day", "Period", "Start", "End", "Class Group", "Subject", "Code", "Teacher", "Room"},
		Rows:    rows,
	}
}
