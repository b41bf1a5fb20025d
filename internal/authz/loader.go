package authz

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/eduflow/eduflow-backend/pkg/database"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/permissions"
)

// Loader resolves the roles and permissions a user holds within a tenant.
// Results are cached for a short TTL; role changes invalidate the cache via
// the event consumer.
type Loader struct {
	db     *database.DB
	cache  *grantCache
	logger *logger.Logger
}

// NewLoader creates a new grant loader.
func NewLoader(db *database.DB, cacheTTL time.Duration, log *logger.Logger) *Loader {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Loader{
		db:     db,
		cache:  newGrantCache(cacheTTL),
		logger: log,
	}
}

// Load returns the grant for a user in a tenant. A user with no roles in the
// tenant has no access at all.
func (l *Loader) Load(ctx context.Context, tenantID, userID string) (*Grant, error) {
	if grant, ok := l.cache.get(tenantID, userID); ok {
		return grant, nil
	}

	roles, err := l.loadRoles(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, errors.NoTenantAccess()
	}

	grant := &Grant{Roles: roles}

	// Principals hold every permission in their school, so the wildcard
	// replaces the per-role union.
	if grant.HasRole(RolePrincipal) {
		grant.Permissions = []string{permissions.Wildcard}
	} else {
		perms, err := l.loadPermissions(ctx, tenantID, roles)
		if err != nil {
			return nil, err
		}
		grant.Permissions = perms
	}

	l.cache.set(tenantID, userID, grant)
	return grant, nil
}

// PlatformOwnerGrant is the grant bound to platform owners: the owner role
// plus the wildcard permission, never loaded from the database.
func PlatformOwnerGrant() *Grant {
	return &Grant{
		Roles:       []string{RolePlatformOwner},
		Permissions: []string{permissions.Wildcard},
	}
}

// Close stops the cache sweeper.
func (l *Loader) Close() {
	l.cache.close()
}

// Invalidate drops the cached grant for one user in one tenant.
func (l *Loader) Invalidate(tenantID, userID string) {
	l.cache.invalidate(tenantID, userID)
}

// InvalidateTenant drops every cached grant for a tenant.
func (l *Loader) InvalidateTenant(tenantID string) {
	l.cache.invalidateTenant(tenantID)
}

// InvalidateAll drops every cached grant across all tenants. The blunt
// instrument for global permission-map changes.
func (l *Loader) InvalidateAll() {
	l.cache.invalidateAll()
}

func (l *Loader) loadRoles(ctx context.Context, tenantID, userID string) ([]string, error) {
	query := `
		SELECT role
		FROM user_roles
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY role
	`

	var roles []string
	err := l.db.WithTenantSession(ctx, tenantID, userID, func(s *database.Session) error {
		return s.Select(ctx, &roles, query, tenantID, userID)
	})
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (l *Loader) loadPermissions(ctx context.Context, tenantID string, roles []string) ([]string, error) {
	query := `
		SELECT DISTINCT permission
		FROM role_permissions
		WHERE tenant_id = $1 AND role = ANY($2)
		ORDER BY permission
	`

	var perms []string
	err := l.db.WithUnscopedSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &perms, query, tenantID, pq.Array(roles))
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}
