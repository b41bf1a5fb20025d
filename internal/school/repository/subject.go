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

// SubjectRepository handles subject persistence
type SubjectRepository struct {
	db *database.DB
}

// NewSubjectRepository creates a new subject repository
func NewSubjectRepository(db *database.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *domain.Subject) error {
	subject.ID = uuid.New().String()
	subject.TenantID = tenant.MustTenantID(ctx)
	subject.Version = 1
	subject.CreatedAt = time.Now()
	subject.UpdatedAt = subject.CreatedAt

	query := `
		INSERT INTO subjects (id, tenant_id, name, code, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query,
			subject.ID, subject.TenantID, subject.Name, subject.Code,
			subject.Version, subject.CreatedAt, subject.UpdatedAt)
		return err
	})
	if err != nil {
		return database.MapPQError(err)
	}
	return nil
}

// GetByID returns a subject by ID.
func (r *SubjectRepository) GetByID(ctx context.Context, id string) (*domain.Subject, error) {
	query := `
		SELECT id, tenant_id, name, code, version, created_at, updated_at, deleted_at
		FROM subjects
		WHERE id = $1 AND deleted_at IS NULL
	`

	var subject domain.Subject
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &subject, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("subject")
		}
		return nil, err
	}
	return &subject, nil
}

// List returns all subjects.
func (r *SubjectRepository) List(ctx context.Context) ([]*domain.Subject, error) {
	query := `
		SELECT id, tenant_id, name, code, version, created_at, updated_at, deleted_at
		FROM subjects
		WHERE deleted_at IS NULL
		ORDER BY name
	`

	var subjects []*domain.Subject
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &subjects, query)
	})
	if err != nil {
		return nil, err
	}
	return subjects, nil
}

// Update applies a version-guarded update.
func (r *SubjectRepository) Update(ctx context.Context, subject *domain.Subject) error {
	query := `
		UPDATE subjects
		SET name = $1, code = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4 AND deleted_at IS NULL
	`

	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		result, err := s.Exec(ctx, query, subject.Name, subject.Code, subject.ID, subject.Version)
		if err != nil {
			return database.MapPQError(err)
		}
		return guardVersion(ctx, s, result, "subjects", subject.ID, "subject")
	})
}

// SoftDelete marks the subject deleted.
func (r *SubjectRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE subjects SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

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
			return errors.NotFound("subject")
		}
		return nil
	})
}
