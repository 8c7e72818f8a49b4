package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const substituteColumns = `id, entry_id, date, day, period_no, absent_teacher_id, absent_teacher_name, substitute_teacher_id, substitute_teacher_name, subject, class_id, section, reason, created_at, updated_at`

// SubstituteRepository persists date-scoped substitute overlays.
type SubstituteRepository struct {
	db *sqlx.DB
}

// NewSubstituteRepository constructs the repository.
func NewSubstituteRepository(db *sqlx.DB) *SubstituteRepository {
	return &SubstituteRepository{db: db}
}

// Upsert writes the assignment for (entry_id, date), replacing any prior one.
func (r *SubstituteRepository) Upsert(ctx context.Context, assignment *models.SubstituteAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO substitute_assignments (` + substituteColumns + `)
		VALUES (:id, :entry_id, :date, :day, :period_no, :absent_teacher_id, :absent_teacher_name, :substitute_teacher_id, :substitute_teacher_name, :subject, :class_id, :section, :reason, :created_at, :updated_at)
		ON CONFLICT (entry_id, date) DO UPDATE
		SET day = EXCLUDED.day,
		    period_no = EXCLUDED.period_no,
		    absent_teacher_id = EXCLUDED.absent_teacher_id,
		    absent_teacher_name = EXCLUDED.absent_teacher_name,
		    substitute_teacher_id = EXCLUDED.substitute_teacher_id,
		    substitute_teacher_name = EXCLUDED.substitute_teacher_name,
		    subject = EXCLUDED.subject,
		    class_id = EXCLUDED.class_id,
		    section = EXCLUDED.section,
		    reason = EXCLUDED.reason,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("upsert substitute assignment: %w", err)
	}
	return nil
}

// FindByEntryDate returns the overlay for one occurrence of an entry.
func (r *SubstituteRepository) FindByEntryDate(ctx context.Context, entryID string, date models.Date) (*models.SubstituteAssignment, error) {
	const query = `SELECT ` + substituteColumns + ` FROM substitute_assignments WHERE entry_id = $1 AND date = $2`
	var assignment models.SubstituteAssignment
	if err := r.db.GetContext(ctx, &assignment, query, entryID, date); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindBySlotDate resolves a class-section's overlay by slot when the entry
// id is unknown.
func (r *SubstituteRepository) FindBySlotDate(ctx context.Context, classID, section string, day models.Day, periodNo int, date models.Date) (*models.SubstituteAssignment, error) {
	const query = `SELECT ` + substituteColumns + ` FROM substitute_assignments
		WHERE date = $1 AND day = $2 AND period_no = $3 AND class_id = $4 AND section = $5
		ORDER BY updated_at DESC LIMIT 1`
	var assignment models.SubstituteAssignment
	if err := r.db.GetContext(ctx, &assignment, query, date, day, periodNo, classID, section); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByDate returns every overlay on a date.
func (r *SubstituteRepository) ListByDate(ctx context.Context, date models.Date) ([]models.SubstituteAssignment, error) {
	const query = `SELECT ` + substituteColumns + ` FROM substitute_assignments WHERE date = $1 ORDER BY period_no ASC, class_id ASC, section ASC`
	var list []models.SubstituteAssignment
	if err := r.db.SelectContext(ctx, &list, query, date); err != nil {
		return nil, fmt.Errorf("list substitutes by date: %w", err)
	}
	return list, nil
}

// ListByRange returns a class-section's overlays between two dates inclusive.
func (r *SubstituteRepository) ListByRange(ctx context.Context, classID, section string, from, to models.Date) ([]models.SubstituteAssignment, error) {
	const query = `SELECT ` + substituteColumns + ` FROM substitute_assignments
		WHERE class_id = $1 AND section = $2 AND date BETWEEN $3 AND $4 ORDER BY date ASC, period_no ASC`
	var list []models.SubstituteAssignment
	if err := r.db.SelectContext(ctx, &list, query, classID, section, from, to); err != nil {
		return nil, fmt.Errorf("list substitutes by range: %w", err)
	}
	return list, nil
}

// Delete removes the overlay for (entry_id, date).
func (r *SubstituteRepository) Delete(ctx context.Context, entryID string, date models.Date) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM substitute_assignments WHERE entry_id = $1 AND date = $2`, entryID, date)
	if err != nil {
		return fmt.Errorf("delete substitute assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete substitute rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
