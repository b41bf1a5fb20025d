// Package tenant carries the request-scoped tenant and actor identity.
//
// The authorization pipeline populates this context; the database facade
// reads it to set the per-session isolation variables. Repositories must
// never query outside of this identity.
package tenant

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const (
	tenantIDKey      contextKey = "tenant_id"
	tenantSlugKey    contextKey = "tenant_slug"
	userIDKey        contextKey = "user_id"
	userEmailKey     contextKey = "user_email"
	platformOwnerKey contextKey = "platform_owner"
)

var (
	// ErrNoTenantInContext is returned when tenant context is missing
	ErrNoTenantInContext = errors.New("no tenant in context")
	// ErrNoUserInContext is returned when actor context is missing
	ErrNoUserInContext = errors.New("no user in context")
)

// WithTenant adds the resolved tenant identity to the context.
func WithTenant(ctx context.Context, id, slug string) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, id)
	ctx = context.WithValue(ctx, tenantSlugKey, slug)
	return ctx
}

// WithUser adds the authenticated actor to the context.
func WithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, userEmailKey, email)
	return ctx
}

// WithPlatformOwner marks the actor as a platform owner. Platform owners may
// run unscoped sessions and impersonate tenants.
func WithPlatformOwner(ctx context.Context) context.Context {
	return context.WithValue(ctx, platformOwnerKey, true)
}

// TenantID extracts the tenant ID from context.
// Returns ErrNoTenantInContext if it is not present.
func TenantID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoTenantInContext
	}
	return id, nil
}

// TenantSlug extracts the tenant slug from context.
func TenantSlug(ctx context.Context) (string, error) {
	slug, ok := ctx.Value(tenantSlugKey).(string)
	if !ok || slug == "" {
		return "", ErrNoTenantInContext
	}
	return slug, nil
}

// UserID extracts the acting user's ID from context.
func UserID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoUserInContext
	}
	return id, nil
}

// UserEmail extracts the acting user's email from context.
func UserEmail(ctx context.Context) (string, error) {
	email, ok := ctx.Value(userEmailKey).(string)
	if !ok || email == "" {
		return "", ErrNoUserInContext
	}
	return email, nil
}

// IsPlatformOwner reports whether the actor is a platform owner.
func IsPlatformOwner(ctx context.Context) bool {
	owner, ok := ctx.Value(platformOwnerKey).(bool)
	return ok && owner
}

// MustTenantID extracts the tenant ID and panics if not found.
// Use only where the pipeline guarantees tenant context.
func MustTenantID(ctx context.Context) string {
	id, err := TenantID(ctx)
	if err != nil {
		panic("tenant ID not found in context")
	}
	return id
}

// MustUserID extracts the user ID and panics if not found.
func MustUserID(ctx context.Context) string {
	id, err := UserID(ctx)
	if err != nil {
		panic("user ID not found in context")
	}
	return id
}
