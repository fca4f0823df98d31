package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amdraipt/timetable-api/internal/models"
)

type analyticsRepository interface {
	TotalEntries(ctx context.Context) (int, error)
	TeacherWorkload(ctx context.Context) ([]models.TeacherWorkload, error)
	RoomUsage(ctx context.Context) ([]models.RoomUtilization, error)
	PeakHours(ctx context.Context, limit int) ([]models.PeakHour, error)
	CountRooms(ctx context.Context) (int, error)
	CountSlots(ctx context.Context) (int, error)
}

const (
	analyticsCacheKey = "analytics:overview"
	peakHoursLimit    = 10
)

// AnalyticsService aggregates timetable statistics with cache integration.
type AnalyticsService struct {
	repo    analyticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo analyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// Overview returns the aggregated timetable analytics. The boolean indicates
// whether data originated from cache.
func (s *AnalyticsService) Overview(ctx context.Context) (*models.TimetableAnalytics, bool, error) {
	var cached models.TimetableAnalytics
	if hit, err := s.cache.Get(ctx, analyticsCacheKey, &cached); err != nil {
		return nil, false, fmt.Errorf("get analytics cache: %w", err)
	} else if hit {
		return &cached, true, nil
	}

	start := time.Now()
	overview, err := s.buildOverview(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_overview", time.Since(start))
	}
	if err := s.cache.Set(ctx, analyticsCacheKey, overview, 0); err != nil {
		s.logger.Warn("cache analytics overview", zap.Error(err))
	}
	return overview, false, nil
}

func (s *AnalyticsService) buildOverview(ctx context.Context) (*models.TimetableAnalytics, error) {
	total, err := s.repo.TotalEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("count timetable entries: %w", err)
	}
	workload, err := s.repo.TeacherWorkload(ctx)
	if err != nil {
		return nil, fmt.Errorf("teacher workload: %w", err)
	}
	usage, err := s.repo.RoomUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("room usage: %w", err)
	}
	peaks, err := s.repo.PeakHours(ctx, peakHoursLimit)
	if err != nil {
		return nil, fmt.Errorf("peak hours: %w", err)
	}
	roomCount, err := s.repo.CountRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("count rooms: %w", err)
	}
	slotCount, err := s.repo.CountSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("count slots: %w", err)
	}

	for i := range usage {
		usage[i].UtilizationPct = utilizationPct(usage[i].Sessions, slotCount)
	}

	free := roomCount*slotCount - total
	if free < 0 {
		free = 0
	}

	return &models.TimetableAnalytics{
		TotalClasses:    total,
		TeacherWorkload: workload,
		RoomUtilization: usage,
		PeakHours:       peaks,
		FreeSlots:       free,
	}, nil
}

// utilizationPct is the share of the weekly slot grid a room is booked for,
// rounded to two decimals.
func utilizationPct(sessions, slotCount int) float64 {
	if slotCount <= 0 {
		return 0
	}
	pct := float64(sessions) / float64(slotCount) * 100
	return float64(int(pct*100+0.5)) / 100
}
