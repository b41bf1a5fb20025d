// Package testutil provides testing utilities for the EduFlow backend:
// a PostgreSQL testcontainer, tenant context helpers, sqlmock wiring for
// session-scoped repositories, and fixture factories.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "eduflow_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "eduflow_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateSchema creates the full application schema with row-level security
// policies keyed on the app.current_tenant session variable, matching what
// the migrations apply in production.
func (c *PostgresContainer) CreateSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(63) UNIQUE NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login_at TIMESTAMPTZ,
			reset_token_hash VARCHAR(64),
			reset_token_expires_at TIMESTAMPTZ,
			activation_token_hash VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ,
			UNIQUE (tenant_id, email)
		);

		CREATE TABLE IF NOT EXISTS platform_users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			tenant_id UUID,
			refresh_token_hash VARCHAR(64) NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked_at TIMESTAMPTZ,
			user_agent TEXT,
			ip_address VARCHAR(45),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS user_roles (
			user_id UUID NOT NULL,
			tenant_id UUID NOT NULL,
			role VARCHAR(50) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, tenant_id, role)
		);

		CREATE TABLE IF NOT EXISTS role_permissions (
			tenant_id UUID NOT NULL,
			role VARCHAR(50) NOT NULL,
			permission VARCHAR(100) NOT NULL,
			PRIMARY KEY (tenant_id, role, permission)
		);

		CREATE TABLE IF NOT EXISTS academic_years (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			name VARCHAR(100) NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS classes (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			academic_year_id UUID NOT NULL,
			name VARCHAR(100) NOT NULL,
			grade INT NOT NULL,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS subjects (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			name VARCHAR(100) NOT NULL,
			code VARCHAR(20) NOT NULL,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS rooms (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			name VARCHAR(100) NOT NULL,
			capacity INT NOT NULL DEFAULT 0,
			available BOOLEAN NOT NULL DEFAULT TRUE,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS time_slots (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			day_of_week INT NOT NULL,
			start_time VARCHAR(5) NOT NULL,
			end_time VARCHAR(5) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS teacher_subjects (
			tenant_id UUID NOT NULL,
			teacher_id UUID NOT NULL,
			subject_id UUID NOT NULL,
			PRIMARY KEY (tenant_id, teacher_id, subject_id)
		);

		CREATE TABLE IF NOT EXISTS teacher_availability (
			tenant_id UUID NOT NULL,
			teacher_id UUID NOT NULL,
			time_slot_id UUID NOT NULL,
			available BOOLEAN NOT NULL,
			PRIMARY KEY (tenant_id, teacher_id, time_slot_id)
		);

		CREATE TABLE IF NOT EXISTS class_subject_requirements (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			class_id UUID NOT NULL,
			subject_id UUID NOT NULL,
			teacher_id UUID,
			periods_per_week INT NOT NULL,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS timetable_entries (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			academic_year_id UUID NOT NULL,
			class_id UUID NOT NULL,
			subject_id UUID NOT NULL,
			teacher_id UUID NOT NULL,
			room_id UUID NOT NULL,
			time_slot_id UUID NOT NULL,
			is_locked BOOLEAN NOT NULL DEFAULT FALSE,
			is_finalized BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			locked_by UUID,
			locked_at TIMESTAMPTZ,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS timetable_drafts (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL,
			academic_year_id UUID NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			placed_count INT NOT NULL DEFAULT 0,
			failed_count INT NOT NULL DEFAULT 0,
			skipped_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS audit_log (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID,
			user_id UUID,
			action VARCHAR(100) NOT NULL,
			entity_type VARCHAR(100),
			entity_id UUID,
			metadata JSONB,
			ip_address VARCHAR(45),
			user_agent TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return c.enableRLS(ctx, db)
}

// enableRLS turns on row-level security for the tenant-scoped tables. The
// policy admits rows matching app.current_tenant and everything when the
// variable is unset, which is the unscoped platform-owner path.
func (c *PostgresContainer) enableRLS(ctx context.Context, db *sqlx.DB) error {
	tables := []string{
		"users", "user_roles", "role_permissions",
		"academic_years", "classes", "subjects", "rooms", "time_slots",
		"teacher_subjects", "teacher_availability", "class_subject_requirements",
		"timetable_entries", "timetable_drafts",
	}

	for _, table := range tables {
		stmts := fmt.Sprintf(`
			ALTER TABLE %[1]s ENABLE ROW LEVEL SECURITY;
			ALTER TABLE %[1]s FORCE ROW LEVEL SECURITY;
			DROP POLICY IF EXISTS tenant_isolation ON %[1]s;
			CREATE POLICY tenant_isolation ON %[1]s
				USING (
					current_setting('app.current_tenant', true) IS NULL
					OR current_setting('app.current_tenant', true) = ''
					OR tenant_id = current_setting('app.current_tenant', true)::uuid
				);
		`, table)
		if _, err := db.ExecContext(ctx, stmts); err != nil {
			return fmt.Errorf("failed to enable RLS on %s: %w", table, err)
		}
	}

	return nil
}
