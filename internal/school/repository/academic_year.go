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

// AcademicYearRepository handles academic year persistence. All access is
// tenant-scoped through the request session.
type AcademicYearRepository struct {
	db *database.DB
}

// NewAcademicYearRepository creates a new academic year repository
func NewAcademicYearRepository(db *database.DB) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// Create inserts a new academic year.
func (r *AcademicYearRepository) Create(ctx context.Context, year *domain.AcademicYear) error {
	year.ID = uuid.New().String()
	year.TenantID = tenant.MustTenantID(ctx)
	year.Version = 1
	year.CreatedAt = time.Now()
	year.UpdatedAt = year.CreatedAt

	query := `
		INSERT INTO academic_years (id, tenant_id, name, start_date, end_date, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query,
			year.ID, year.TenantID, year.Name, year.StartDate, year.EndDate,
			year.Active, year.Version, year.CreatedAt, year.UpdatedAt)
		return err
	})
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID returns an academic year by ID.
func (r *AcademicYearRepository) GetByID(ctx context.Context, id string) (*domain.AcademicYear, error) {
	query := `
		SELECT id, tenant_id, name, start_date, end_date, active, version, created_at, updated_at, deleted_at
		FROM academic_years
		WHERE id = $1 AND deleted_at IS NULL
	`

	var year domain.AcademicYear
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &year, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("academic year")
		}
		return nil, err
	}
	return &year, nil
}

// List returns all academic years, newest first.
func (r *AcademicYearRepository) List(ctx context.Context) ([]*domain.AcademicYear, error) {
	query := `
		SELECT id, tenant_id, name, start_date, end_date, active, version, created_at, updated_at, deleted_at
		FROM academic_years
		WHERE deleted_at IS NULL
		ORDER BY start_date DESC
	`

	var years []*domain.AcademicYear
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &years, query)
	})
	if err != nil {
		return nil, err
	}
	return years, nil
}

// Update applies a version-guarded update. A stale version yields
// VersionConflict.
func (r *AcademicYearRepository) Update(ctx context.Context, year *domain.AcademicYear) error {
	query := `
		UPDATE academic_years
		SET name = $1, start_date = $2, end_date = $3, active = $4,
		    version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6 AND deleted_at IS NULL
	`

	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		result, err := s.Exec(ctx, query,
			year.Name, year.StartDate, year.EndDate, year.Active, year.ID, year.Version)
		if err != nil {
			return database.MapPQError(err)
		}
		return guardVersion(ctx, s, result, "academic_years", year.ID, "academic year")
	})
}

// SoftDelete marks the year deleted.
func (r *AcademicYearRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE academic_years SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

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
			return errors.NotFound("academic year")
		}
		return nil
	})
}

// guardVersion distinguishes a stale version from a missing row after a
// zero-row version-guarded update.
func guardVersion(ctx context.Context, s *database.Session, result sql.Result, table, id, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM " + table + " WHERE id = $1 AND deleted_at IS NULL)"
	if err := s.Get(ctx, &exists, query, id); err != nil {
		return err
	}
	if exists {
		return errors.VersionConflict()
	}
	return errors.NotFound(resource)
}
