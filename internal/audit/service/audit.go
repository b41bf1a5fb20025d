package service

import (
	"context"
	"encoding/json"

	"github.com/eduflow/eduflow-backend/internal/audit/domain"
	"github.com/eduflow/eduflow-backend/internal/audit/repository"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/messaging"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// AuditService records and queries audit log entries. Recording is
// best-effort: a failed audit write is logged, never surfaced to the caller.
type AuditService struct {
	repo      *repository.AuditRepository
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewAuditService creates a new audit service. publisher may be nil when the
// message bus is not configured.
func NewAuditService(repo *repository.AuditRepository, publisher *messaging.Publisher, log *logger.Logger) *AuditService {
	return &AuditService{
		repo:      repo,
		publisher: publisher,
		logger:    log,
	}
}

// RecordOption mutates an entry before it is persisted.
type RecordOption func(*domain.Entry)

// WithEntity attaches the acted-upon entity to the entry.
func WithEntity(entityType, entityID string) RecordOption {
	return func(e *domain.Entry) {
		e.EntityType = &entityType
		e.EntityID = &entityID
	}
}

// WithMetadata attaches arbitrary structured detail to the entry.
func WithMetadata(v interface{}) RecordOption {
	return func(e *domain.Entry) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		e.Metadata = data
	}
}

// WithRequestInfo attaches the caller's address and user agent.
func WithRequestInfo(ipAddress, userAgent string) RecordOption {
	return func(e *domain.Entry) {
		if ipAddress != "" {
			e.IPAddress = &ipAddress
		}
		if userAgent != "" {
			e.UserAgent = &userAgent
		}
	}
}

// WithActor overrides the actor derived from context. Used on login paths
// where the user is known but not yet in the request context.
func WithActor(tenantID, userID string) RecordOption {
	return func(e *domain.Entry) {
		if tenantID != "" {
			e.TenantID = &tenantID
		}
		if userID != "" {
			e.UserID = &userID
		}
	}
}

// Record persists an audit entry and mirrors it onto the bus. Tenant and user
// default to the request context identity.
func (s *AuditService) Record(ctx context.Context, action string, opts ...RecordOption) {
	entry := &domain.Entry{Action: action}

	if tenantID, err := tenant.TenantID(ctx); err == nil {
		entry.TenantID = &tenantID
	}
	if userID, err := tenant.UserID(ctx); err == nil {
		entry.UserID = &userID
	}

	for _, opt := range opts {
		opt(entry)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to write audit log")
		return
	}

	if s.publisher != nil {
		event := &messaging.AuditLogEvent{Action: action}
		if entry.TenantID != nil {
			event.TenantID = *entry.TenantID
		}
		if entry.UserID != nil {
			event.UserID = *entry.UserID
		}
		if entry.EntityType != nil {
			event.EntityType = *entry.EntityType
		}
		if entry.EntityID != nil {
			event.EntityID = *entry.EntityID
		}
		if entry.IPAddress != nil {
			event.IPAddress = *entry.IPAddress
		}
		if err := s.publisher.Publish(ctx, messaging.EventAuditLogCreated, event); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish audit event")
		}
	}
}

// List returns audit entries matching the filter.
func (s *AuditService) List(ctx context.Context, filter *domain.ListFilter) ([]*domain.Entry, error) {
	return s.repo.List(ctx, filter)
}
