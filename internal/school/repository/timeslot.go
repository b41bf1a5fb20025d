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

// TimeSlotRepository handles time slot persistence. Slots referenced by
// timetable entries are immutable, so there is no update path, only create
// and delete with a reference guard.
type TimeSlotRepository struct {
	db *database.DB
}

// NewTimeSlotRepository creates a new time slot repository
func NewTimeSlotRepository(db *database.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// Create inserts a new time slot.
func (r *TimeSlotRepository) Create(ctx context.Context, slot *domain.TimeSlot) error {
	slot.ID = uuid.New().String()
	slot.TenantID = tenant.MustTenantID(ctx)
	slot.CreatedAt = time.Now()

	query := `
		INSERT INTO time_slots (id, tenant_id, day_of_week, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query,
			slot.ID, slot.TenantID, slot.DayOfWeek, slot.StartTime, slot.EndTime, slot.CreatedAt)
		return err
	})
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID returns a time slot by ID.
func (r *TimeSlotRepository) GetByID(ctx context.Context, id string) (*domain.TimeSlot, error) {
	query := `
		SELECT id, tenant_id, day_of_week, start_time, end_time, created_at, deleted_at
		FROM time_slots
		WHERE id = $1 AND deleted_at IS NULL
	`

	var slot domain.TimeSlot
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &slot, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("time slot")
		}
		return nil, err
	}
	return &slot, nil
}

// List returns all time slots in week order. This order is the ambient slot
// order the generator tries.
func (r *TimeSlotRepository) List(ctx context.Context) ([]*domain.TimeSlot, error) {
	query := `
		SELECT id, tenant_id, day_of_week, start_time, end_time, created_at, deleted_at
		FROM time_slots
		WHERE deleted_at IS NULL
		ORDER BY day_of_week, start_time
	`

	var slots []*domain.TimeSlot
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &slots, query)
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// SoftDelete marks the slot deleted. Slots referenced by active entries are
// immutable and cannot be deleted.
func (r *TimeSlotRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		var referenced bool
		err := s.Get(ctx, &referenced,
			`SELECT EXISTS (
				SELECT 1 FROM timetable_entries
				WHERE time_slot_id = $1 AND is_active = true AND deleted_at IS NULL
			)`, id)
		if err != nil {
			return err
		}
		if referenced {
			return errors.Conflict("time slot is referenced by timetable entries")
		}

		result, err := s.Exec(ctx,
			`UPDATE time_slots SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.NotFound("time slot")
		}
		return nil
	})
}
