package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/eduflow/eduflow-backend/pkg/database"
	"github.com/eduflow/eduflow-backend/pkg/errors"
)

// User is a tenant-bound account.
type User struct {
	ID           string     `db:"id"`
	TenantID     string     `db:"tenant_id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	Active       bool       `db:"active"`
	LastLoginAt  *time.Time `db:"last_login_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// PlatformUser is a platform-owner account. Platform users have no tenant and
// bypass tenant scoping entirely.
type PlatformUser struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Active       bool       `db:"active"`
	LastLoginAt  *time.Time `db:"last_login_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

// UserRepository looks up accounts for authentication. Lookups run unscoped
// because they happen before any identity is established; the tenant filter
// is applied explicitly in SQL instead of through session variables.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail finds a tenant user by email within the given tenant.
func (r *UserRepository) GetByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	query := `
		SELECT id, tenant_id, email, password_hash, first_name, last_name, active, last_login_at, created_at, updated_at
		FROM users
		WHERE tenant_id = $1 AND lower(email) = lower($2) AND deleted_at IS NULL
	`

	var user User
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &user, query, tenantID, email)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// GetByID finds a tenant user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, tenant_id, email, password_hash, first_name, last_name, active, last_login_at, created_at, updated_at
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`

	var user User
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &user, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// GetPlatformUserByEmail finds a platform-owner account by email.
func (r *UserRepository) GetPlatformUserByEmail(ctx context.Context, email string) (*PlatformUser, error) {
	query := `
		SELECT id, email, password_hash, active, last_login_at, created_at
		FROM platform_users
		WHERE lower(email) = lower($1)
	`

	var user PlatformUser
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &user, query, email)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// GetPlatformUserByID finds a platform-owner account by ID.
func (r *UserRepository) GetPlatformUserByID(ctx context.Context, id string) (*PlatformUser, error) {
	query := `
		SELECT id, email, password_hash, active, last_login_at, created_at
		FROM platform_users
		WHERE id = $1
	`

	var user PlatformUser
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &user, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// CreateInvited inserts an inactive account holding an activation token. The
// invitee sets their password through the activation endpoint.
func (r *UserRepository) CreateInvited(ctx context.Context, tenantID, email, firstName, lastName, activationTokenHash string) (*User, error) {
	user := &User{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Active:    false,
	}

	query := `
		INSERT INTO users (id, tenant_id, email, password_hash, first_name, last_name, active, activation_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, '', $4, $5, FALSE, $6, NOW(), NOW())
	`

	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query, user.ID, tenantID, email, firstName, lastName, activationTokenHash)
		return err
	})
	if err != nil {
		return nil, database.MapPQError(err)
	}
	return user, nil
}

// AssignRoles adds roles for a user within a tenant. Existing assignments are
// left untouched.
func (r *UserRepository) AssignRoles(ctx context.Context, tenantID, userID string, roles []string) error {
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		for _, role := range roles {
			_, err := s.Exec(ctx,
				"INSERT INTO user_roles (user_id, tenant_id, role) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
				userID, tenantID, role)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SetResetToken stores a password reset token hash with its expiry. Any
// previous token is replaced.
func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx,
			"UPDATE users SET reset_token_hash = $1, reset_token_expires_at = $2, updated_at = NOW() WHERE id = $3 AND deleted_at IS NULL",
			tokenHash, expiresAt, id)
		return err
	})
}

// GetByResetToken finds a user holding an unexpired reset token.
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string) (*User, error) {
	query := `
		SELECT id, tenant_id, email, password_hash, first_name, last_name, active, last_login_at, created_at, updated_at
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires_at > NOW() AND deleted_at IS NULL
	`

	var user User
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &user, query, tokenHash)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.BadRequest("invalid or expired reset token")
		}
		return nil, err
	}
	return &user, nil
}

// UpdatePassword replaces the password hash and clears any pending reset
// token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx,
			"UPDATE users SET password_hash = $1, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW() WHERE id = $2",
			passwordHash, id)
		return err
	})
}

// GetByActivationToken finds a not-yet-activated user by activation token.
func (r *UserRepository) GetByActivationToken(ctx context.Context, tokenHash string) (*User, error) {
	query := `
		SELECT id, tenant_id, email, password_hash, first_name, last_name, active, last_login_at, created_at, updated_at
		FROM users
		WHERE activation_token_hash = $1 AND deleted_at IS NULL
	`

	var user User
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &user, query, tokenHash)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.BadRequest("invalid activation token")
		}
		return nil, err
	}
	return &user, nil
}

// Activate sets the initial password, marks the account active and consumes
// the activation token.
func (r *UserRepository) Activate(ctx context.Context, id, passwordHash string) error {
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx,
			"UPDATE users SET password_hash = $1, active = TRUE, activation_token_hash = NULL, updated_at = NOW() WHERE id = $2",
			passwordHash, id)
		return err
	})
}

// TouchLastLogin stamps last_login_at on a successful tenant user login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) error {
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, "UPDATE users SET last_login_at = NOW() WHERE id = $1", id)
		return err
	})
}

// TouchPlatformLastLogin stamps last_login_at on a platform-owner login.
func (r *UserRepository) TouchPlatformLastLogin(ctx context.Context, id string) error {
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, "UPDATE platform_users SET last_login_at = NOW() WHERE id = $1", id)
		return err
	})
}
