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

// RequirementRepository handles class-subject requirement persistence
type RequirementRepository struct {
	db *database.DB
}

// NewRequirementRepository creates a new requirement repository
func NewRequirementRepository(db *database.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// Create inserts a new requirement.
func (r *RequirementRepository) Create(ctx context.Context, req *domain.ClassSubjectRequirement) error {
	req.ID = uuid.New().String()
	req.TenantID = tenant.MustTenantID(ctx)
	req.Version = 1
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt

	query := `
		INSERT INTO class_subject_requirements (id, tenant_id, class_id, subject_id, teacher_id, periods_per_week, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query,
			req.ID, req.TenantID, req.ClassID, req.SubjectID, req.TeacherID,
			req.PeriodsPerWeek, req.Version, req.CreatedAt, req.UpdatedAt)
		return err
	})
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID returns a requirement by ID.
func (r *RequirementRepository) GetByID(ctx context.Context, id string) (*domain.ClassSubjectRequirement, error) {
	query := `
		SELECT id, tenant_id, class_id, subject_id, teacher_id, periods_per_week, version, created_at, updated_at, deleted_at
		FROM class_subject_requirements
		WHERE id = $1 AND deleted_at IS NULL
	`

	var req domain.ClassSubjectRequirement
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &req, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("requirement")
		}
		return nil, err
	}
	return &req, nil
}

// ListByClasses returns requirements for the given classes in creation order.
// Creation order is the stable tiebreak for the generator's difficulty sort.
func (r *RequirementRepository) ListByClasses(ctx context.Context, classIDs []string) ([]*domain.ClassSubjectRequirement, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, tenant_id, class_id, subject_id, teacher_id, periods_per_week, version, created_at, updated_at, deleted_at
		FROM class_subject_requirements
		WHERE class_id = ANY($1) AND deleted_at IS NULL
		ORDER BY created_at, id
	`

	var reqs []*domain.ClassSubjectRequirement
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &reqs, query, pq.Array(classIDs))
	})
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// Update applies a version-guarded update.
func (r *RequirementRepository) Update(ctx context.Context, req *domain.ClassSubjectRequirement) error {
	query := `
		UPDATE class_subject_requirements
		SET subject_id = $1, teacher_id = $2, periods_per_week = $3,
		    version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5 AND deleted_at IS NULL
	`

	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		result, err := s.Exec(ctx, query,
			req.SubjectID, req.TeacherID, req.PeriodsPerWeek, req.ID, req.Version)
		if err != nil {
			return database.MapPQError(err)
		}
		return guardVersion(ctx, s, result, "class_subject_requirements", req.ID, "requirement")
	})
}

// SoftDelete marks the requirement deleted.
func (r *RequirementRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE class_subject_requirements SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

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
			return errors.NotFound("requirement")
		}
		return nil
	})
}
