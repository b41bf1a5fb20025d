package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-backend/internal/authz"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/messaging"
	"github.com/eduflow/eduflow-backend/pkg/testutil"
)

// handlerRegistry captures registered handlers so tests can dispatch events
// directly, without a broker.
type handlerRegistry map[string]messaging.MessageHandler

func (r handlerRegistry) RegisterHandler(eventType string, handler messaging.MessageHandler) {
	r[eventType] = handler
}

func (r handlerRegistry) dispatch(t *testing.T, eventType string, payload interface{}) {
	t.Helper()
	handler, ok := r[eventType]
	require.True(t, ok, "no handler registered for %s", eventType)

	event, err := messaging.NewEvent(eventType, "test", "", payload)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), event))
}

func newInvalidationRegistry(loader *authz.Loader) handlerRegistry {
	registry := handlerRegistry{}
	authz.RegisterInvalidationHandlers(registry, loader, logger.NewNop())
	return registry
}

func warmCache(t *testing.T, mockDB *testutil.MockDB, loader *authz.Loader) {
	t.Helper()
	ctx := testutil.TenantContext(loaderTenantID, loaderUserID)

	expectRoles(mockDB, authz.RoleTeacher)
	expectPermissions(mockDB, []string{authz.RoleTeacher}, "timetable:read")

	_, err := loader.Load(ctx, loaderTenantID, loaderUserID)
	require.NoError(t, err)
}

func TestInvalidationHandlers_RoleChangeDropsCachedGrant(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	loader := newTestLoader(mockDB)
	registry := newInvalidationRegistry(loader)
	warmCache(t, mockDB, loader)

	registry.dispatch(t, messaging.EventUserRoleChanged, &messaging.RoleChangedEvent{
		UserID:   loaderUserID,
		TenantID: loaderTenantID,
		Roles:    []string{authz.RoleRegistrar},
	})

	// The next load goes back to the database.
	expectRoles(mockDB, authz.RoleRegistrar)
	expectPermissions(mockDB, []string{authz.RoleRegistrar}, "school:manage")

	ctx := testutil.TenantContext(loaderTenantID, loaderUserID)
	grant, err := loader.Load(ctx, loaderTenantID, loaderUserID)
	require.NoError(t, err)
	assert.Equal(t, []string{authz.RoleRegistrar}, grant.Roles)

	mockDB.ExpectationsWereMet(t)
}

func TestInvalidationHandlers_PermissionChangeDropsTenant(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	loader := newTestLoader(mockDB)
	registry := newInvalidationRegistry(loader)
	warmCache(t, mockDB, loader)

	registry.dispatch(t, messaging.EventRolePermissionChanged, &messaging.RoleChangedEvent{
		TenantID: loaderTenantID,
	})

	expectRoles(mockDB, authz.RoleTeacher)
	expectPermissions(mockDB, []string{authz.RoleTeacher}, "timetable:move", "timetable:read")

	ctx := testutil.TenantContext(loaderTenantID, loaderUserID)
	grant, err := loader.Load(ctx, loaderTenantID, loaderUserID)
	require.NoError(t, err)
	assert.Equal(t, []string{"timetable:move", "timetable:read"}, grant.Permissions)

	mockDB.ExpectationsWereMet(t)
}

func TestInvalidationHandlers_PlatformWidePermissionChangeDropsEverything(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	loader := newTestLoader(mockDB)
	registry := newInvalidationRegistry(loader)
	warmCache(t, mockDB, loader)

	// No tenant on the event means a platform-wide change.
	registry.dispatch(t, messaging.EventRolePermissionChanged, &messaging.RoleChangedEvent{})

	expectRoles(mockDB, authz.RoleTeacher)
	expectPermissions(mockDB, []string{authz.RoleTeacher}, "timetable:read")

	ctx := testutil.TenantContext(loaderTenantID, loaderUserID)
	_, err := loader.Load(ctx, loaderTenantID, loaderUserID)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}
