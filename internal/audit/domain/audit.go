package domain

import (
	"encoding/json"
	"time"
)

// Audit actions. Stored verbatim in audit_logs.action.
const (
	ActionLoginSuccess           = "LOGIN_SUCCESS"
	ActionLoginFailure           = "LOGIN_FAILURE"
	ActionTokenRefresh           = "TOKEN_REFRESH"
	ActionLogout                 = "LOGOUT"
	ActionPasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	ActionPasswordReset          = "PASSWORD_RESET"
	ActionAccountActivated       = "ACCOUNT_ACTIVATED"
	ActionUserInvited            = "USER_INVITED"
	ActionRoleAssigned           = "ROLE_ASSIGNED"
	ActionRoleRevoked            = "ROLE_REVOKED"
	ActionEntityCreated          = "ENTITY_CREATED"
	ActionEntityUpdated          = "ENTITY_UPDATED"
	ActionEntityDeleted          = "ENTITY_DELETED"

	ActionTimetableGenerated = "TIMETABLE_GENERATED"
	ActionTimetableFinalized = "TIMETABLE_FINALIZED"
	ActionEntryMoved         = "TIMETABLE_ENTRY_MOVED"
	ActionEntryLocked        = "TIMETABLE_ENTRY_LOCKED"
	ActionEntryUnlocked      = "TIMETABLE_ENTRY_UNLOCKED"
)

// Entry is a single audit log record. TenantID and UserID are pointers because
// platform-level actions (failed logins without a resolved tenant, owner
// operations) have no tenant or no authenticated user.
type Entry struct {
	ID         string          `db:"id" json:"id"`
	TenantID   *string         `db:"tenant_id" json:"tenant_id,omitempty"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	EntityType *string         `db:"entity_type" json:"entity_type,omitempty"`
	EntityID   *string         `db:"entity_id" json:"entity_id,omitempty"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	IPAddress  *string         `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  *string         `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// ListFilter narrows an audit log query.
type ListFilter struct {
	Action     string
	EntityType string
	EntityID   string
	UserID     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
