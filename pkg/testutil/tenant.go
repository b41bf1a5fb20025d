package testutil

import (
	"context"

	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// TenantContext returns a context carrying a tenant and acting user, the way
// the authentication middleware would leave it for a tenant-bound request.
func TenantContext(tenantID, userID string) context.Context {
	ctx := tenant.WithTenant(context.Background(), tenantID, "test-school")
	return tenant.WithUser(ctx, userID, "user@test.eduflow.io")
}

// PlatformOwnerContext returns a context for a platform owner with no bound
// tenant.
func PlatformOwnerContext(userID string) context.Context {
	ctx := tenant.WithUser(context.Background(), userID, "owner@eduflow.io")
	return tenant.WithPlatformOwner(ctx)
}

// ImpersonationContext returns a context for a platform owner acting inside a
// tenant.
func ImpersonationContext(tenantID, userID string) context.Context {
	ctx := tenant.WithTenant(context.Background(), tenantID, "test-school")
	ctx = tenant.WithUser(ctx, userID, "owner@eduflow.io")
	return tenant.WithPlatformOwner(ctx)
}
