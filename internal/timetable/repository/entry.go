package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/eduflow/eduflow-backend/internal/timetable/domain"
	"github.com/eduflow/eduflow-backend/pkg/database"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// EntryRepository handles timetable entry persistence
type EntryRepository struct {
	db *database.DB
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *database.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

const entryColumns = `id, tenant_id, academic_year_id, class_id, subject_id, teacher_id, room_id, time_slot_id,
	is_locked, is_finalized, is_active, locked_by, locked_at, version, created_at, updated_at, deleted_at`

// GetByID returns an entry by ID.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM timetable_entries WHERE id = $1 AND deleted_at IS NULL`

	var entry domain.Entry
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &entry, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("timetable entry")
		}
		return nil, err
	}
	return &entry, nil
}

// ListActive returns the active entries for an academic year, optionally
// narrowed to classes.
func (r *EntryRepository) ListActive(ctx context.Context, academicYearID string, classIDs []string) ([]*domain.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM timetable_entries
		WHERE academic_year_id = $1 AND is_active = true AND deleted_at IS NULL
	`
	args := []interface{}{academicYearID}
	if len(classIDs) > 0 {
		query += " AND class_id = ANY($2)"
		args = append(args, pq.Array(classIDs))
	}
	query += " ORDER BY created_at, id"

	var entries []*domain.Entry
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &entries, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListViews returns active entries with display labels.
func (r *EntryRepository) ListViews(ctx context.Context, academicYearID string) ([]*domain.EntryView, error) {
	query := `
		SELECT e.id, e.tenant_id, e.academic_year_id, e.class_id, e.subject_id, e.teacher_id,
		       e.room_id, e.time_slot_id, e.is_locked, e.is_finalized, e.is_active,
		       e.locked_by, e.locked_at, e.version, e.created_at, e.updated_at, e.deleted_at,
		       c.name AS class_name,
		       sub.name AS subject_name,
		       u.first_name || ' ' || u.last_name AS teacher_name,
		       rm.name AS room_name,
		       ts.day_of_week, ts.start_time, ts.end_time
		FROM timetable_entries e
		JOIN classes c ON c.id = e.class_id
		JOIN subjects sub ON sub.id = e.subject_id
		JOIN users u ON u.id = e.teacher_id
		JOIN rooms rm ON rm.id = e.room_id
		JOIN time_slots ts ON ts.id = e.time_slot_id
		WHERE e.academic_year_id = $1 AND e.is_active = true AND e.deleted_at IS NULL
		ORDER BY ts.day_of_week, ts.start_time, c.name
	`

	var views []*domain.EntryView
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &views, query, academicYearID)
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// CommitGeneration persists one generation run atomically: soft-delete the
// cleared entries, insert the placed ones, and record the draft. Partial
// commits would leave a half-written plan, so everything shares one
// transaction.
func (r *EntryRepository) CommitGeneration(ctx context.Context, clearIDs []string, placed []*domain.Entry, draft *domain.Draft) error {
	tenantID := tenant.MustTenantID(ctx)
	now := time.Now()

	draft.ID = uuid.New().String()
	draft.TenantID = tenantID
	draft.Status = domain.DraftStatusDraft
	draft.CreatedAt = now
	draft.UpdatedAt = now

	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		if len(clearIDs) > 0 {
			_, err := s.Exec(ctx,
				`UPDATE timetable_entries SET is_active = false, deleted_at = NOW() WHERE id = ANY($1)`,
				pq.Array(clearIDs))
			if err != nil {
				return err
			}
		}

		insertQuery := `
			INSERT INTO timetable_entries (id, tenant_id, academic_year_id, class_id, subject_id, teacher_id,
				room_id, time_slot_id, is_locked, is_finalized, is_active, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, false, true, 1, $9, $9)
		`
		for _, entry := range placed {
			entry.ID = uuid.New().String()
			entry.TenantID = tenantID
			entry.IsActive = true
			entry.Version = 1
			entry.CreatedAt = now
			entry.UpdatedAt = now

			_, err := s.Exec(ctx, insertQuery,
				entry.ID, entry.TenantID, entry.AcademicYearID, entry.ClassID, entry.SubjectID,
				entry.TeacherID, entry.RoomID, entry.TimeSlotID, now)
			if err != nil {
				return database.MapPQError(err)
			}
		}

		_, err := s.Exec(ctx, `
			INSERT INTO timetable_drafts (id, tenant_id, academic_year_id, status, placed_count, failed_count, skipped_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, draft.ID, draft.TenantID, draft.AcademicYearID, draft.Status,
			draft.PlacedCount, draft.FailedCount, draft.SkippedCount, draft.CreatedAt, draft.UpdatedAt)
		return err
	})
}

// Move applies a version-guarded update of the placement fields.
func (r *EntryRepository) Move(ctx context.Context, entry *domain.Entry) (*domain.Entry, error) {
	query := `
		UPDATE timetable_entries
		SET time_slot_id = $1, room_id = $2, teacher_id = $3, version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5 AND deleted_at IS NULL
		RETURNING ` + entryColumns

	var updated domain.Entry
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		err := s.Get(ctx, &updated, query,
			entry.TimeSlotID, entry.RoomID, entry.TeacherID, entry.ID, entry.Version)
		if err == sql.ErrNoRows {
			var exists bool
			if err := s.Get(ctx, &exists,
				`SELECT EXISTS (SELECT 1 FROM timetable_entries WHERE id = $1 AND deleted_at IS NULL)`,
				entry.ID); err != nil {
				return err
			}
			if exists {
				return errors.VersionConflict()
			}
			return errors.NotFound("timetable entry")
		}
		return database.MapPQError(err)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetLock sets or clears the manual lock on an entry.
func (r *EntryRepository) SetLock(ctx context.Context, id string, locked bool) (*domain.Entry, error) {
	var query string
	var args []interface{}
	if locked {
		query = `
			UPDATE timetable_entries
			SET is_locked = true, locked_by = $1, locked_at = NOW(), version = version + 1, updated_at = NOW()
			WHERE id = $2 AND deleted_at IS NULL
			RETURNING ` + entryColumns
		args = []interface{}{tenant.MustUserID(ctx), id}
	} else {
		query = `
			UPDATE timetable_entries
			SET is_locked = false, locked_by = NULL, locked_at = NULL, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING ` + entryColumns
		args = []interface{}{id}
	}

	var updated domain.Entry
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		err := s.Get(ctx, &updated, query, args...)
		if err == sql.ErrNoRows {
			return errors.NotFound("timetable entry")
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Finalize marks every active entry in the year finalized and closes the
// draft, in one transaction.
func (r *EntryRepository) Finalize(ctx context.Context, academicYearID, draftID string) (int, error) {
	var count int
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		result, err := s.Exec(ctx, `
			UPDATE timetable_entries
			SET is_finalized = true, version = version + 1, updated_at = NOW()
			WHERE academic_year_id = $1 AND is_active = true AND deleted_at IS NULL
		`, academicYearID)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		count = int(rows)

		_, err = s.Exec(ctx, `
			UPDATE timetable_drafts
			SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3
		`, domain.DraftStatusFinalized, draftID, domain.DraftStatusDraft)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
