package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

var entryColumns = []string{"id", "academic_year_id", "class_id", "section", "week_start", "day", "period_no", "subject_id", "teacher_id", "room_id", "is_published", "is_editable", "created_at", "updated_at"}

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleEntryRepositoryLoadWeek(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(entryColumns).
		AddRow("e1", "ay-1", "8", "A", "2025-11-03", "MON", 1, "11", "51", nil, false, true, now, now).
		AddRow("e2", "ay-1", "8", "A", "2025-11-03", "MON", 2, "12", "52", "lab-1", false, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_entries WHERE class_id = $1 AND section = $2 AND week_start = $3")).
		WithArgs("8", "A", models.Date("2025-11-03")).
		WillReturnRows(rows)

	entries, err := repo.LoadWeek(context.Background(), models.WeekKey{ClassID: "8", Section: "A", WeekStart: "2025-11-03"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.DayMonday, entries[0].Day)
	assert.Equal(t, models.Date("2025-11-03"), entries[0].WeekStart)
	assert.Nil(t, entries[0].RoomID)
	require.NotNil(t, entries[1].RoomID)
	assert.Equal(t, "lab-1", *entries[1].RoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryLoadSlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_entries WHERE week_start = $1 AND day = $2 AND period_no = $3")).
		WithArgs(models.Date("2025-11-10"), models.DayMonday, 3).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow("e9", "ay-1", "9", "B", "2025-11-10", "MON", 3, "11", "51", nil, true, true, now, now))

	entries, err := repo.LoadSlot(context.Background(), models.SlotKey{WeekStart: "2025-11-10", Day: models.DayMonday, PeriodNo: 3})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "51", entries[0].TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_entries WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositorySaveEntriesUsesTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_entries")).
		WithArgs("e1", "ay-1", "8", "A", models.Date("2025-11-03"), models.DayMonday, 1, "11", "52", sqlmock.AnyArg(), false, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_entries")).
		WithArgs("e2", "ay-1", "8", "A", models.Date("2025-11-03"), models.DayMonday, 2, "12", "51", sqlmock.AnyArg(), false, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entries := []models.ScheduleEntry{
		{ID: "e1", AcademicYearID: "ay-1", ClassID: "8", Section: "A", WeekStart: "2025-11-03", Day: models.DayMonday, PeriodNo: 1, SubjectID: "11", TeacherID: "52", IsEditable: true},
		{ID: "e2", AcademicYearID: "ay-1", ClassID: "8", Section: "A", WeekStart: "2025-11-03", Day: models.DayMonday, PeriodNo: 2, SubjectID: "12", TeacherID: "51", IsEditable: true},
	}
	require.NoError(t, repo.SaveEntries(context.Background(), entries))
	assert.False(t, entries[0].UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryReplaceWeekRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	key := models.WeekKey{ClassID: "8", Section: "A", WeekStart: "2025-11-03"}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE class_id = $1 AND section = $2 AND week_start = $3")).
		WithArgs("8", "A", models.Date("2025-11-03")).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_entries")).
		WillReturnError(fmt.Errorf("unique violation"))
	mock.ExpectRollback()

	err := repo.ReplaceWeek(context.Background(), key, []models.ScheduleEntry{{ClassID: "8", Section: "A", WeekStart: "2025-11-03", Day: models.DayTuesday, PeriodNo: 1, SubjectID: "11", TeacherID: "51"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique violation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "gone"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositorySetPublished(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)
	key := models.WeekKey{ClassID: "8", Section: "A", WeekStart: "2025-11-03"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_entries SET is_published = $1, updated_at = $2")).
		WithArgs(true, sqlmock.AnyArg(), "8", "A", models.Date("2025-11-03")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	updated, err := repo.SetPublished(context.Background(), key, true, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, updated)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_entries SET is_published = $1, is_editable = $6")).
		WithArgs(true, sqlmock.AnyArg(), "8", "A", models.Date("2025-11-03"), false).
		WillReturnResult(sqlmock.NewResult(0, 5))
	_, err = repo.SetPublished(context.Background(), key, true, true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
