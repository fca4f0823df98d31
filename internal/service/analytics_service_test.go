package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amdraipt/timetable-api/internal/models"
)

type analyticsRepoStub struct {
	total    int
	workload []models.TeacherWorkload
	usage    []models.RoomUtilization
	peaks    []models.PeakHour
	rooms    int
	slots    int
	err      error
}

func (s *analyticsRepoStub) TotalEntries(ctx context.Context) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.total, nil
}

func (s *analyticsRepoStub) TeacherWorkload(ctx context.Context) ([]models.TeacherWorkload, error) {
	return s.workload, nil
}

func (s *analyticsRepoStub) RoomUsage(ctx context.Context) ([]models.RoomUtilization, error) {
	return s.usage, nil
}

func (s *analyticsRepoStub) PeakHours(ctx context.Context, limit int) ([]models.PeakHour, error) {
	if len(s.peaks) > limit {
		return s.peaks[:limit], nil
	}
	return s.peaks, nil
}

func (s *analyticsRepoStub) CountRooms(ctx context.Context) (int, error) {
	return s.rooms, nil
}

func (s *analyticsRepoStub) CountSlots(ctx context.Context) (int, error) {
	return s.slots, nil
}

func TestAnalyticsServiceOverview(t *testing.T) {
	repo := &analyticsRepoStub{
		total: 25,
		workload: []models.TeacherWorkload{
			{TeacherID: "t1", TeacherName: "Ms. Carter", Sessions: 15},
			{TeacherID: "t2", TeacherName: "Mr. Okafor", Sessions: 0},
		},
		usage: []models.RoomUtilization{
			{RoomID: "r1", RoomName: "Room 101", Sessions: 15},
			{RoomID: "r2", RoomName: "Room 102", Sessions: 10},
		},
		peaks: []models.PeakHour{{Day: "Monday", Period: 1, Sessions: 2}},
		rooms: 2,
		slots: 30,
	}
	service := NewAnalyticsService(repo, nil, nil, zap.NewNop())

	overview, hit, err := service.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 25, overview.TotalClasses)

	// Teachers with zero sessions still show up in the workload list.
	require.Len(t, overview.TeacherWorkload, 2)
	assert.Equal(t, 0, overview.TeacherWorkload[1].Sessions)

	require.Len(t, overview.RoomUtilization, 2)
	assert.InDelta(t, 50.0, overview.RoomUtilization[0].UtilizationPct, 0.01)
	assert.InDelta(t, 33.33, overview.RoomUtilization[1].UtilizationPct, 0.01)

	// 2 rooms x 30 slots - 25 placed sessions.
	assert.Equal(t, 35, overview.FreeSlots)
}

func TestAnalyticsServiceOverviewEmptyGrid(t *testing.T) {
	repo := &analyticsRepoStub{
		usage: []models.RoomUtilization{{RoomID: "r1", RoomName: "Room 101", Sessions: 0}},
		rooms: 1,
		slots: 0,
	}
	service := NewAnalyticsService(repo, nil, nil, zap.NewNop())

	overview, _, err := service.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, overview.FreeSlots)
	assert.Zero(t, overview.RoomUtilization[0].UtilizationPct)
}

func TestAnalyticsServiceOverviewRepoError(t *testing.T) {
	repo := &analyticsRepoStub{err: errors.New("db down")}
	service := NewAnalyticsService(repo, nil, nil, zap.NewNop())

	_, _, err := service.Overview(context.Background())
	require.Error(t, err)
}
