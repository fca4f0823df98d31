package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdraipt/timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableRepositoryReplaceAll(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO timetable_entries").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	entries := []models.ScheduleEntry{
		{ID: "e1", SubjectID: "s1", TeacherID: "t1", RoomID: "r1", TimeSlotID: "slot-1", ClassGroup: "10A"},
		{ID: "e2", SubjectID: "s2", TeacherID: "t2", RoomID: "r2", TimeSlotID: "slot-2", ClassGroup: "10B"},
	}
	require.NoError(t, repo.ReplaceAll(context.Background(), entries))

	// Commit order is stamped onto the rows before insert.
	assert.Equal(t, 0, entries[0].Position)
	assert.Equal(t, 1, entries[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryReplaceAllEmptySkipsInsert(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceAll(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows([]string{"id", "subject_id", "teacher_id", "room_id", "time_slot_id", "class_group", "position", "created_at"}).
		AddRow("e1", "s1", "t1", "r1", "slot-1", "10A", 0, time.Now()).
		AddRow("e2", "s2", "t2", "r2", "slot-2", "10B", 1, time.Now())
	mock.ExpectQuery("FROM timetable_entries ORDER BY position ASC").
		WillReturnRows(rows)

	entries, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e1", entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
