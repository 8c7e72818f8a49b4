package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SubjectRequirementRepository reads weekly subject demand per class.
type SubjectRequirementRepository struct {
	db *sqlx.DB
}

// NewSubjectRequirementRepository constructs the repository.
func NewSubjectRequirementRepository(db *sqlx.DB) *SubjectRequirementRepository {
	return &SubjectRequirementRepository{db: db}
}

// ListByClass returns the curriculum of a class.
func (r *SubjectRequirementRepository) ListByClass(ctx context.Context, classID string) ([]models.SubjectRequirement, error) {
	const query = `SELECT cs.class_id, cs.subject_id, s.name AS subject_name, cs.weekly_periods, cs.is_core, cs.requires_room, COALESCE(cs.room_kind, '') AS room_kind
FROM class_subjects cs JOIN subjects s ON s.id = cs.subject_id
WHERE cs.class_id = $1 ORDER BY s.name ASC`
	var list []models.SubjectRequirement
	if err := r.db.SelectContext(ctx, &list, query, classID); err != nil {
		return nil, fmt.Errorf("list subject requirements: %w", err)
	}
	return list, nil
}
