package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
)

const scheduleEntryColumns = `id, academic_year_id, class_id, section, week_start, day, period_no, subject_id, teacher_id, room_id, is_published, is_editable, created_at, updated_at`

const scheduleEntryDayOrder = `array_position(ARRAY['MON','TUE','WED','THU','FRI','SAT']::text[], day)`

// ScheduleEntryRepository persists timetable entries.
type ScheduleEntryRepository struct {
	db *sqlx.DB
}

// NewScheduleEntryRepository constructs the repository.
func NewScheduleEntryRepository(db *sqlx.DB) *ScheduleEntryRepository {
	return &ScheduleEntryRepository{db: db}
}

// LoadWeek returns every entry of a class-section week in grid order.
func (r *ScheduleEntryRepository) LoadWeek(ctx context.Context, key models.WeekKey) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE class_id = $1 AND section = $2 AND week_start = $3 ORDER BY %s, period_no`, scheduleEntryColumns, scheduleEntryDayOrder)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, key.ClassID, key.Section, key.WeekStart); err != nil {
		return nil, fmt.Errorf("load week %s: %w", key, err)
	}
	return entries, nil
}

// ListByWeekStart returns the entries of every class for one week.
func (r *ScheduleEntryRepository) ListByWeekStart(ctx context.Context, weekStart models.Date) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE week_start = $1 ORDER BY class_id, section, %s, period_no`, scheduleEntryColumns, scheduleEntryDayOrder)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, weekStart); err != nil {
		return nil, fmt.Errorf("list entries for week %s: %w", weekStart, err)
	}
	return entries, nil
}

// LoadSlot returns entries of all classes occupying one slot.
func (r *ScheduleEntryRepository) LoadSlot(ctx context.Context, slot models.SlotKey) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE week_start = $1 AND day = $2 AND period_no = $3 ORDER BY class_id, section`, scheduleEntryColumns)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, slot.WeekStart, slot.Day, slot.PeriodNo); err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	return entries, nil
}

// LoadDay returns entries of all classes for one day of a week.
func (r *ScheduleEntryRepository) LoadDay(ctx context.Context, weekStart models.Date, day models.Day) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE week_start = $1 AND day = $2 ORDER BY period_no, class_id, section`, scheduleEntryColumns)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, weekStart, day); err != nil {
		return nil, fmt.Errorf("load day: %w", err)
	}
	return entries, nil
}

// LoadTeacherBookings returns a teacher's entries across classes for one week.
func (r *ScheduleEntryRepository) LoadTeacherBookings(ctx context.Context, teacherID string, weekStart models.Date) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE teacher_id = $1 AND week_start = $2 ORDER BY %s, period_no`, scheduleEntryColumns, scheduleEntryDayOrder)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID, weekStart); err != nil {
		return nil, fmt.Errorf("load teacher bookings: %w", err)
	}
	return entries, nil
}

// FindByID fetches one entry; sql.ErrNoRows is returned untouched.
func (r *ScheduleEntryRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE id = $1`, scheduleEntryColumns)
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveEntries upserts entries by id inside a single transaction.
func (r *ScheduleEntryRepository) SaveEntries(ctx context.Context, entries []models.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return r.upsert(ctx, tx, entries)
	})
}

// ReplaceWeek deletes a week and writes the replacement set atomically.
func (r *ScheduleEntryRepository) ReplaceWeek(ctx context.Context, key models.WeekKey, entries []models.ScheduleEntry) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const query = `DELETE FROM schedule_entries WHERE class_id = $1 AND section = $2 AND week_start = $3`
		if _, err := tx.ExecContext(ctx, query, key.ClassID, key.Section, key.WeekStart); err != nil {
			return fmt.Errorf("clear week %s: %w", key, err)
		}
		return r.upsert(ctx, tx, entries)
	})
}

// Delete removes one entry and reports sql.ErrNoRows when nothing matched.
func (r *ScheduleEntryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schedule_entries WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schedule entry rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetPublished flips is_published for a week. When lockEditable is set the
// entries become read-only while published and editable again afterwards.
func (r *ScheduleEntryRepository) SetPublished(ctx context.Context, key models.WeekKey, published, lockEditable bool) (int64, error) {
	query := `UPDATE schedule_entries SET is_published = $1, updated_at = $2 WHERE class_id = $3 AND section = $4 AND week_start = $5`
	args := []interface{}{published, time.Now().UTC(), key.ClassID, key.Section, key.WeekStart}
	if lockEditable {
		query = `UPDATE schedule_entries SET is_published = $1, is_editable = $6, updated_at = $2 WHERE class_id = $3 AND section = $4 AND week_start = $5`
		args = append(args, !published)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("set published for week %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set published rows: %w", err)
	}
	return affected, nil
}

func (r *ScheduleEntryRepository) upsert(ctx context.Context, exec sqlx.ExtContext, entries []models.ScheduleEntry) error {
	now := time.Now().UTC()
	const query = `
INSERT INTO schedule_entries (id, academic_year_id, class_id, section, week_start, day, period_no, subject_id, teacher_id, room_id, is_published, is_editable, created_at, updated_at)
VALUES (:id, :academic_year_id, :class_id, :section, :week_start, :day, :period_no, :subject_id, :teacher_id, :room_id, :is_published, :is_editable, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE
SET day = EXCLUDED.day,
    period_no = EXCLUDED.period_no,
    subject_id = EXCLUDED.subject_id,
    teacher_id = EXCLUDED.teacher_id,
    room_id = EXCLUDED.room_id,
    is_published = EXCLUDED.is_published,
    is_editable = EXCLUDED.is_editable,
    updated_at = EXCLUDED.updated_at`

	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		entry.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, exec, query, entry); err != nil {
			return fmt.Errorf("upsert schedule entry: %w", err)
		}
	}
	return nil
}
