package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
)

// PeriodRepository stores the bell schedule of each class.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// ListByClass returns the periods of a class ordered by number.
func (r *PeriodRepository) ListByClass(ctx context.Context, classID string) ([]models.Period, error) {
	const query = `SELECT class_id, period_no, start_time, end_time FROM class_periods WHERE class_id = $1 ORDER BY period_no ASC`
	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, query, classID); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// ReplaceForClass swaps the full period table of a class in one transaction.
func (r *PeriodRepository) ReplaceForClass(ctx context.Context, classID string, periods []models.Period) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM class_periods WHERE class_id = $1`, classID); err != nil {
			return fmt.Errorf("clear periods: %w", err)
		}
		const insert = `INSERT INTO class_periods (class_id, period_no, start_time, end_time) VALUES (:class_id, :period_no, :start_time, :end_time)`
		for i := range periods {
			periods[i].ClassID = classID
			if _, err := sqlx.NamedExecContext(ctx, tx, insert, &periods[i]); err != nil {
				return fmt.Errorf("insert period %d: %w", periods[i].PeriodNo, err)
			}
		}
		return nil
	})
}
