package authz

import (
	"context"

	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/messaging"
)

// HandlerRegistry is the slice of messaging.Consumer needed to wire event
// handlers.
type HandlerRegistry interface {
	RegisterHandler(eventType string, handler messaging.MessageHandler)
}

// RegisterInvalidationHandlers wires grant-cache invalidation to role and
// permission change events. Without this a role revocation would linger for
// up to one cache TTL.
func RegisterInvalidationHandlers(consumer HandlerRegistry, loader *Loader, log *logger.Logger) {
	consumer.RegisterHandler(messaging.EventUserRoleChanged, func(ctx context.Context, event *messaging.Event) error {
		var payload messaging.RoleChangedEvent
		if err := event.UnmarshalData(&payload); err != nil {
			return err
		}

		loader.Invalidate(payload.TenantID, payload.UserID)
		log.Debug().
			Str("tenant_id", payload.TenantID).
			Str("user_id", payload.UserID).
			Msg("grant cache invalidated after role change")
		return nil
	})

	consumer.RegisterHandler(messaging.EventRolePermissionChanged, func(ctx context.Context, event *messaging.Event) error {
		var payload messaging.RoleChangedEvent
		if err := event.UnmarshalData(&payload); err != nil {
			return err
		}

		// A permission set change affects every holder of the role. Events
		// without a tenant signal a platform-wide change.
		if payload.TenantID == "" {
			loader.InvalidateAll()
		} else {
			loader.InvalidateTenant(payload.TenantID)
		}
		log.Debug().
			Str("tenant_id", payload.TenantID).
			Msg("grant cache invalidated after permission change")
		return nil
	})
}
