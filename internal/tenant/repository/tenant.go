package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/eduflow/eduflow-backend/pkg/database"
	"github.com/eduflow/eduflow-backend/pkg/errors"
)

// Tenant statuses
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
)

// Tenant is a school on the platform.
type Tenant struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Active reports whether the tenant can serve requests.
func (t *Tenant) Active() bool {
	return t.Status == StatusActive
}

// TenantRepository handles tenant persistence. The tenants table is platform
// infrastructure, so all access is unscoped.
type TenantRepository struct {
	db *database.DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *database.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetByID finds a tenant by ID.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*Tenant, error) {
	query := `
		SELECT id, name, slug, status, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`

	var tenant Tenant
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &tenant, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("tenant")
		}
		return nil, err
	}
	return &tenant, nil
}

// GetBySlug finds a tenant by slug.
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	query := `
		SELECT id, name, slug, status, created_at, updated_at
		FROM tenants
		WHERE slug = $1
	`

	var tenant Tenant
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &tenant, query, slug)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("tenant")
		}
		return nil, err
	}
	return &tenant, nil
}

// List returns all tenants. Platform-owner operation.
func (r *TenantRepository) List(ctx context.Context) ([]*Tenant, error) {
	query := `
		SELECT id, name, slug, status, created_at, updated_at
		FROM tenants
		ORDER BY name
	`

	var tenants []*Tenant
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &tenants, query)
	})
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

// Create provisions a new tenant.
func (r *TenantRepository) Create(ctx context.Context, name, slug string) (*Tenant, error) {
	tenant := &Tenant{
		ID:        uuid.New().String(),
		Name:      name,
		Slug:      slug,
		Status:    StatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
		INSERT INTO tenants (id, name, slug, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query,
			tenant.ID, tenant.Name, tenant.Slug, tenant.Status, tenant.CreatedAt, tenant.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, database.MapPQError(err)
	}
	return tenant, nil
}

// UpdateStatus moves a tenant between lifecycle states.
func (r *TenantRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE tenants SET status = $1, updated_at = NOW() WHERE id = $2`

	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		result, err := s.Exec(ctx, query, status, id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.NotFound("tenant")
		}
		return nil
	})
}
