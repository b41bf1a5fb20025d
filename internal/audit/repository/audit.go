package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eduflow/eduflow-backend/internal/audit/domain"
	"github.com/eduflow/eduflow-backend/pkg/database"
)

// AuditRepository persists audit log entries. Writes go through the unscoped
// session because audit rows must land even when the request has no tenant
// bound (failed logins, platform operations). Reads are tenant-scoped.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// ============================================================================
// Writes
// ============================================================================

// Create inserts an audit entry. The entry keeps its own tenant column rather
// than relying on session variables so that platform-level events are
// recordable too.
func (r *AuditRepository) Create(ctx context.Context, entry *domain.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_logs (id, tenant_id, user_id, action, entity_type, entity_id, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	return r.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query,
			entry.ID,
			entry.TenantID,
			entry.UserID,
			entry.Action,
			entry.EntityType,
			entry.EntityID,
			entry.Metadata,
			entry.IPAddress,
			entry.UserAgent,
			entry.CreatedAt,
		)
		return err
	})
}

// ============================================================================
// Reads
// ============================================================================

// List returns audit entries visible to the caller, newest first.
func (r *AuditRepository) List(ctx context.Context, filter *domain.ListFilter) ([]*domain.Entry, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	addCondition := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, argPos))
		args = append(args, value)
		argPos++
	}

	if filter.Action != "" {
		addCondition("action = $%d", filter.Action)
	}
	if filter.EntityType != "" {
		addCondition("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != "" {
		addCondition("entity_id = $%d", filter.EntityID)
	}
	if filter.UserID != "" {
		addCondition("user_id = $%d", filter.UserID)
	}
	if filter.From != nil {
		addCondition("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		addCondition("created_at <= $%d", *filter.To)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, user_id, action, entity_type, entity_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, strings.Join(conditions, " AND "), argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	var entries []*domain.Entry
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &entries, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
