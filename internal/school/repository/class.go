package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/eduflow/eduflow-backend/internal/school/domain"
	"github.com/eduflow/eduflow-backend/pkg/database"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// ClassRepository handles class persistence
type ClassRepository struct {
	db *database.DB
}

// NewClassRepository creates a new class repository
func NewClassRepository(db *database.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *domain.Class) error {
	class.ID = uuid.New().String()
	class.TenantID = tenant.MustTenantID(ctx)
	class.Version = 1
	class.CreatedAt = time.Now()
	class.UpdatedAt = class.CreatedAt

	query := `
		INSERT INTO classes (id, tenant_id, academic_year_id, name, grade, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query,
			class.ID, class.TenantID, class.AcademicYearID, class.Name, class.Grade,
			class.Version, class.CreatedAt, class.UpdatedAt)
		return err
	})
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID returns a class by ID.
func (r *ClassRepository) GetByID(ctx context.Context, id string) (*domain.Class, error) {
	query := `
		SELECT id, tenant_id, academic_year_id, name, grade, version, created_at, updated_at, deleted_at
		FROM classes
		WHERE id = $1 AND deleted_at IS NULL
	`

	var class domain.Class
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &class, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("class")
		}
		return nil, err
	}
	return &class, nil
}

// ListByAcademicYear returns classes in a year, optionally narrowed to IDs.
func (r *ClassRepository) ListByAcademicYear(ctx context.Context, academicYearID string, classIDs []string) ([]*domain.Class, error) {
	query := `
		SELECT id, tenant_id, academic_year_id, name, grade, version, created_at, updated_at, deleted_at
		FROM classes
		WHERE academic_year_id = $1 AND deleted_at IS NULL
	`
	args := []interface{}{academicYearID}

	if len(classIDs) > 0 {
		query += " AND id = ANY($2)"
		args = append(args, pq.Array(classIDs))
	}
	query += " ORDER BY grade, name"

	var classes []*domain.Class
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &classes, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return classes, nil
}

// Update applies a version-guarded update.
func (r *ClassRepository) Update(ctx context.Context, class *domain.Class) error {
	query := `
		UPDATE classes
		SET name = $1, grade = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4 AND deleted_at IS NULL
	`

	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		result, err := s.Exec(ctx, query, class.Name, class.Grade, class.ID, class.Version)
		if err != nil {
			return database.MapPQError(err)
		}
		return guardVersion(ctx, s, result, "classes", class.ID, "class")
	})
}

// SoftDelete marks the class deleted.
func (r *ClassRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE classes SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

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
			return errors.NotFound("class")
		}
		return nil
	})
}
