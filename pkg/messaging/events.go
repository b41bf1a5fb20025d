package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Auth events
	EventLoginSuccess = "auth.login.success"
	EventLoginFailure = "auth.login.failure"
	EventTokenRefresh = "auth.token.refresh"

	// Password lifecycle events; the mailer consumes reset_requested
	EventPasswordResetRequested = "auth.password.reset_requested"
	EventPasswordReset          = "auth.password.reset"
	EventAccountActivated       = "auth.account.activated"

	// Role and permission events; the authz cache invalidates on these
	EventUserRoleChanged       = "user.role.changed"
	EventRolePermissionChanged = "user.permission.changed"
	EventUserInvited           = "user.invited"

	// Timetable events
	EventTimetableGenerated   = "timetable.generated"
	EventTimetableFinalized   = "timetable.finalized"
	EventTimetableEntryMoved  = "timetable.entry.moved"
	EventTimetableEntryLocked = "timetable.entry.locked"

	// Audit events
	EventAuditLogCreated = "audit.log.created"
)

// Exchange names
const (
	ExchangeAuthEvents      = "auth.events"
	ExchangeUserEvents      = "user.events"
	ExchangeTimetableEvents = "timetable.events"
	ExchangeAuditEvents     = "audit.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	TenantID      string          `json:"tenant_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// LoginEvent is published on login attempts, successful or not.
type LoginEvent struct {
	Email     string `json:"email"`
	TenantID  string `json:"tenant_id,omitempty"`
	IPAddress string `json:"ip_address"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
}

// PasswordResetEvent carries the reset token to the mailer. The token is
// single-use and expires server-side; it never appears in logs.
type PasswordResetEvent struct {
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
	Token    string `json:"token,omitempty"`
}

// UserInvitedEvent carries the activation token to the mailer.
type UserInvitedEvent struct {
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
	Token    string `json:"token,omitempty"`
}

// RoleChangedEvent is published when a user's role set changes within a
// tenant. Consumers drop cached role/permission entries.
type RoleChangedEvent struct {
	UserID   string   `json:"user_id"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

// TimetableGeneratedEvent is published after a generation run completes.
type TimetableGeneratedEvent struct {
	TenantID       string `json:"tenant_id"`
	AcademicYearID string `json:"academic_year_id"`
	DraftID        string `json:"draft_id"`
	PlacedCount    int    `json:"placed_count"`
	FailedCount    int    `json:"failed_count"`
	SkippedCount   int    `json:"skipped_count"`
}

// TimetableFinalizedEvent is published when a draft is finalized.
type TimetableFinalizedEvent struct {
	TenantID       string `json:"tenant_id"`
	AcademicYearID string `json:"academic_year_id"`
	DraftID        string `json:"draft_id"`
	EntryCount     int    `json:"entry_count"`
}

// AuditLogEvent mirrors a persisted audit record onto the bus.
type AuditLogEvent struct {
	TenantID   string `json:"tenant_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
}
