package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amdraipt/timetable-api/internal/models"
)

type mockTimeSlotRepo struct {
	items    map[string]*models.TimeSlot
	replaced []models.TimeSlot
}

func (m *mockTimeSlotRepo) ListAll(ctx context.Context) ([]models.TimeSlot, error) {
	return m.replaced, nil
}

func (m *mockTimeSlotRepo) Create(ctx context.Context, slot *models.TimeSlot) error {
	if m.items == nil {
		m.items = make(map[string]*models.TimeSlot)
	}
	if slot.ID == "" {
		slot.ID = "generated"
	}
	cp := *slot
	m.items[slot.ID] = &cp
	return nil
}

func (m *mockTimeSlotRepo) ReplaceAll(ctx context.Context, slots []models.TimeSlot) error {
	m.replaced = slots
	return nil
}

func (m *mockTimeSlotRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func TestTimeSlotServiceGenerateDefault(t *testing.T) {
	repo := &mockTimeSlotRepo{}
	service := NewTimeSlotService(repo, validator.New(), zap.NewNop())

	resp, err := service.GenerateDefault(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, resp.Count)
	require.Len(t, repo.replaced, 30)

	// Five weekdays, periods one through six on each.
	perDay := map[string][]int{}
	for _, slot := range repo.replaced {
		perDay[slot.Day] = append(perDay[slot.Day], slot.Period)
	}
	require.Len(t, perDay, 5)
	for _, day := range models.Weekdays {
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, perDay[day])
	}

	assert.Equal(t, "08:00 AM", repo.replaced[0].StartTime)
	assert.Equal(t, "01:30 PM", repo.replaced[5].EndTime)
}

func TestTimeSlotServiceCreateRejectsUnknownDay(t *testing.T) {
	repo := &mockTimeSlotRepo{}
	service := NewTimeSlotService(repo, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateTimeSlotRequest{Day: "Saturday", Period: 1})
	require.Error(t, err)
	assert.Empty(t, repo.items)
}

func TestTimeSlotServiceCreate(t *testing.T) {
	repo := &mockTimeSlotRepo{}
	service := NewTimeSlotService(repo, validator.New(), zap.NewNop())

	slot, err := service.Create(context.Background(), CreateTimeSlotRequest{
		Day:       "Monday",
		Period:    7,
		StartTime: "02:00 PM",
		EndTime:   "02:50 PM",
	})
	require.NoError(t, err)
	assert.Equal(t, "Monday", slot.Day)
	assert.Equal(t, 7, slot.Period)
	assert.Len(t, repo.items, 1)
}
