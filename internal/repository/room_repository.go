package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// RoomRepository reads the room catalog.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns every room ordered by name.
func (r *RoomRepository) List(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, kind, capacity FROM rooms ORDER BY name ASC, id ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

