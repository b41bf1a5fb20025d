package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// Session is the typed handle the facade passes to closures. Every statement
// issued through it runs on the one connection whose session variables were
// set, inside a single transaction. Repositories receive a *Session and must
// not reach for the pool directly.
type Session struct {
	tx *sqlx.Tx
}

// Get runs a query expected to return one row and scans it into dest.
func (s *Session) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.tx.GetContext(ctx, dest, query, args...)
}

// Select runs a query and scans all rows into dest.
func (s *Session) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.tx.SelectContext(ctx, dest, query, args...)
}

// Exec runs a statement and returns its result.
func (s *Session) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

// QueryRow runs a query expected to return one row.
func (s *Session) QueryRow(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return s.tx.QueryRowxContext(ctx, query, args...)
}

// Query runs a query returning multiple rows.
func (s *Session) Query(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	return s.tx.QueryxContext(ctx, query, args...)
}

// NamedExec runs a named statement bound to arg.
func (s *Session) NamedExec(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return s.tx.NamedExecContext(ctx, query, arg)
}

// WithTenantSession executes fn inside a transaction whose session variables
// identify the tenant and the acting user. Row-level security policies filter
// on these variables, so setting both MUST be the first action on the
// connection; any data statement before that is a programming error.
//
// The variables are set with set_config(..., true), which scopes them to the
// transaction. Commit or rollback clears them before the connection returns
// to the pool.
//
// Usage in repositories:
//
//	err := r.db.WithTenantSession(ctx, tenantID, userID, func(s *database.Session) error {
//	    return s.Get(ctx, &row, "SELECT ... FROM rooms WHERE id = $1", id)
//	})
func (db *DB) WithTenantSession(ctx context.Context, tenantID, userID string, fn func(*Session) error) error {
	if tenantID == "" {
		return errors.TenantRequired()
	}

	conn, err := db.acquire(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Session setter runs before anything else. A connection whose setter
	// failed is in an unknown state and is discarded, not pooled.
	_, err = tx.ExecContext(ctx,
		"SELECT set_config('app.current_tenant', $1, true), set_config('app.current_user', $2, true)",
		tenantID, userID)
	if err != nil {
		_ = tx.Rollback()
		discard(conn)
		return fmt.Errorf("failed to set session identity: %w", err)
	}

	if err := fn(&Session{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		conn.Close()
		return err
	}

	if err := tx.Commit(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return conn.Close()
}

// WithUnscopedSession executes fn without tenant session variables. RLS
// bypass policies apply, so this path is reserved for platform owners and
// system operations (audit writes, tenant provisioning, cross-tenant admin).
func (db *DB) WithUnscopedSession(ctx context.Context, fn func(*Session) error) error {
	conn, err := db.acquire(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Session{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		conn.Close()
		return err
	}

	if err := tx.Commit(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return conn.Close()
}

// WithRequestSession derives the session identity from the request context:
// tenant-bound actors get a tenant session, platform owners without a bound
// tenant get an unscoped one, anything else is rejected. This is the funnel
// every repository goes through.
func (db *DB) WithRequestSession(ctx context.Context, fn func(*Session) error) error {
	tenantID, tErr := tenant.TenantID(ctx)
	userID, _ := tenant.UserID(ctx)

	if tErr == nil {
		return db.WithTenantSession(ctx, tenantID, userID, fn)
	}
	if tenant.IsPlatformOwner(ctx) {
		return db.WithUnscopedSession(ctx, fn)
	}
	return errors.TenantRequired()
}

// discard marks the underlying driver connection bad so the pool drops it
// instead of recycling it.
func discard(conn *sqlx.Conn) {
	_ = conn.Raw(func(driverConn any) error { return driver.ErrBadConn })
	_ = conn.Close()
}
