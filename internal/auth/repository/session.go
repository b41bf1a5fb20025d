package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/eduflow/eduflow-backend/pkg/database"
	"github.com/eduflow/eduflow-backend/pkg/errors"
)

// Session represents a refresh token session. TenantID is nil for platform
// owners.
type Session struct {
	ID               string     `db:"id"`
	UserID           string     `db:"user_id"`
	TenantID         *string    `db:"tenant_id"`
	RefreshTokenHash string     `db:"refresh_token_hash"`
	UserAgent        *string    `db:"user_agent"`
	IPAddress        *string    `db:"ip_address"`
	ExpiresAt        time.Time  `db:"expires_at"`
	CreatedAt        time.Time  `db:"created_at"`
	LastUsedAt       time.Time  `db:"last_used_at"`
	RevokedAt        *time.Time `db:"revoked_at"`
}

// SessionRepository handles session persistence. Sessions are auth
// infrastructure and live outside tenant scoping.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new session with the given ID. Only a hash of the refresh
// token is stored.
func (r *SessionRepository) Create(ctx context.Context, id, userID string, tenantID *string, refreshToken string, expiresAt time.Time, userAgent, ipAddress string) (*Session, error) {
	session := &Session{
		ID:               id,
		UserID:           userID,
		TenantID:         tenantID,
		RefreshTokenHash: hashToken(refreshToken),
		UserAgent:        &userAgent,
		IPAddress:        &ipAddress,
		ExpiresAt:        expiresAt,
		CreatedAt:        time.Now(),
		LastUsedAt:       time.Now(),
	}

	query := `
		INSERT INTO sessions (id, user_id, tenant_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query,
			session.ID,
			session.UserID,
			session.TenantID,
			session.RefreshTokenHash,
			session.UserAgent,
			session.IPAddress,
			session.ExpiresAt,
			session.CreatedAt,
			session.LastUsedAt,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetByRefreshToken finds a live session by refresh token.
func (r *SessionRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	hash := hashToken(refreshToken)

	query := `
		SELECT id, user_id, tenant_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at, last_used_at, revoked_at
		FROM sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`

	var session Session
	err := r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &session, query, hash)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Unauthorized("invalid session")
		}
		return nil, err
	}
	return &session, nil
}

// RotateRefreshToken swaps the stored hash for the new token's hash. Called on
// every refresh so a leaked old token stops working immediately.
func (r *SessionRepository) RotateRefreshToken(ctx context.Context, id, newRefreshToken string) error {
	newHash := hashToken(newRefreshToken)
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx,
			"UPDATE sessions SET refresh_token_hash = $1, last_used_at = NOW() WHERE id = $2",
			newHash, id)
		return err
	})
}

// RevokeByRefreshToken revokes the session holding the given refresh token.
func (r *SessionRepository) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	hash := hashToken(refreshToken)
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx,
			"UPDATE sessions SET revoked_at = NOW() WHERE refresh_token_hash = $1 AND revoked_at IS NULL",
			hash)
		return err
	})
}

// RevokeAllForUser revokes every live session of a user. Used when roles are
// revoked or the account is deactivated.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx,
			"UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL",
			userID)
		return err
	})
}

// CleanExpired removes sessions past expiry or already revoked.
func (r *SessionRepository) CleanExpired(ctx context.Context) error {
	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx,
			"DELETE FROM sessions WHERE expires_at < NOW() OR revoked_at IS NOT NULL")
		return err
	})
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
