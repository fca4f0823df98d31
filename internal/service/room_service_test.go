package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdraipt/timetable-api/internal/models"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
)

type mockRoomRepo struct {
	items map[string]*models.Room
}

func (m *mockRoomRepo) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	out := make([]models.Room, 0, len(m.items))
	for _, r := range m.items {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockRoomRepo) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if room, ok := m.items[id]; ok {
		cp := *room
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRoomRepo) Create(ctx context.Context, room *models.Room) error {
	if m.items == nil {
		m.items = make(map[string]*models.Room)
	}
	if room.ID == "" {
		room.ID = "generated"
	}
	cp := *room
	m.items[room.ID] = &cp
	return nil
}

func (m *mockRoomRepo) Update(ctx context.Context, room *models.Room) error {
	if _, ok := m.items[room.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *room
	m.items[room.ID] = &cp
	return nil
}

func (m *mockRoomRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func TestRoomServiceCreateDefaults(t *testing.T) {
	repo := &mockRoomRepo{}
	svc := NewRoomService(repo, nil, nil)

	room, err := svc.Create(context.Background(), CreateRoomRequest{Name: "  Room 101  "})
	require.NoError(t, err)
	assert.Equal(t, "Room 101", room.Name)
	assert.Equal(t, "classroom", room.RoomType)
	assert.Equal(t, 40, room.Capacity)
}

func TestRoomServiceCreateKeepsExplicitValues(t *testing.T) {
	repo := &mockRoomRepo{}
	svc := NewRoomService(repo, nil, nil)

	room, err := svc.Create(context.Background(), CreateRoomRequest{Name: "Science Lab", RoomType: "lab", Capacity: 24})
	require.NoError(t, err)
	assert.Equal(t, "lab", room.RoomType)
	assert.Equal(t, 24, room.Capacity)
}

func TestRoomServiceCreateRequiresName(t *testing.T) {
	svc := NewRoomService(&mockRoomRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateRoomRequest{})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRoomServiceUpdatePartial(t *testing.T) {
	repo := &mockRoomRepo{items: map[string]*models.Room{
		"r-1": {ID: "r-1", Name: "Room 101", RoomType: "classroom", Capacity: 40},
	}}
	svc := NewRoomService(repo, nil, nil)

	capacity := 32
	room, err := svc.Update(context.Background(), "r-1", UpdateRoomRequest{Capacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, 32, room.Capacity)
	assert.Equal(t, "Room 101", room.Name)
	assert.Equal(t, "classroom", room.RoomType)
}

func TestRoomServiceDeleteNotFound(t *testing.T) {
	svc := NewRoomService(&mockRoomRepo{}, nil, nil)

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
