package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/eduflow/eduflow-backend/internal/school/domain"
	"github.com/eduflow/eduflow-backend/pkg/database"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// RoomRepository handles room persistence
type RoomRepository struct {
	db *database.DB
}

// NewRoomRepository creates a new room repository
func NewRoomRepository(db *database.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create inserts a new room.
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	room.ID = uuid.New().String()
	room.TenantID = tenant.MustTenantID(ctx)
	room.Version = 1
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt

	query := `
		INSERT INTO rooms (id, tenant_id, name, capacity, available, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query,
			room.ID, room.TenantID, room.Name, room.Capacity, room.Available,
			room.Version, room.CreatedAt, room.UpdatedAt)
		return err
	})
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID returns a room by ID.
func (r *RoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	query := `
		SELECT id, tenant_id, name, capacity, available, version, created_at, updated_at, deleted_at
		FROM rooms
		WHERE id = $1 AND deleted_at IS NULL
	`

	var room domain.Room
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &room, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("room")
		}
		return nil, err
	}
	return &room, nil
}

// List returns all rooms. onlyAvailable narrows to schedulable rooms.
func (r *RoomRepository) List(ctx context.Context, onlyAvailable bool) ([]*domain.Room, error) {
	query := `
		SELECT id, tenant_id, name, capacity, available, version, created_at, updated_at, deleted_at
		FROM rooms
		WHERE deleted_at IS NULL
	`
	if onlyAvailable {
		query += " AND available = true"
	}
	query += " ORDER BY name"

	var rooms []*domain.Room
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &rooms, query)
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// Update applies a version-guarded update.
func (r *RoomRepository) Update(ctx context.Context, room *domain.Room) error {
	query := `
		UPDATE rooms
		SET name = $1, capacity = $2, available = $3, version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5 AND deleted_at IS NULL
	`

	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		result, err := s.Exec(ctx, query,
			room.Name, room.Capacity, room.Available, room.ID, room.Version)
		if err != nil {
			return database.MapPQError(err)
		}
		return guardVersion(ctx, s, result, "rooms", room.ID, "room")
	})
}

// SoftDelete marks the room deleted.
func (r *RoomRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE rooms SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		result, err := s.Exec(ctx, query, id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.NotFound("room")
		}
		return nil
	})
}
