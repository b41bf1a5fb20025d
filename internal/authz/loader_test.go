package authz_test

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-backend/internal/authz"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/permissions"
	"github.com/eduflow/eduflow-backend/pkg/testutil"
)

const (
	loaderTenantID = "11111111-1111-1111-1111-111111111111"
	loaderUserID   = "22222222-2222-2222-2222-222222222222"
)

func newTestLoader(m *testutil.MockDB) *authz.Loader {
	return authz.NewLoader(m.DB, time.Minute, logger.NewNop())
}

func expectRoles(m *testutil.MockDB, roles ...string) {
	rows := testutil.MockRows("role")
	for _, role := range roles {
		rows.AddRow(role)
	}
	m.ExpectTenantTx(loaderTenantID, loaderUserID)
	m.Mock.ExpectQuery("FROM user_roles").
		WithArgs(loaderTenantID, loaderUserID).
		WillReturnRows(rows)
	m.ExpectCommit()
}

func expectPermissions(m *testutil.MockDB, roles []string, perms ...string) {
	rows := testutil.MockRows("permission")
	for _, p := range perms {
		rows.AddRow(p)
	}
	m.ExpectUnscopedTx()
	m.Mock.ExpectQuery("FROM role_permissions").
		WithArgs(loaderTenantID, pq.Array(roles)).
		WillReturnRows(rows)
	m.ExpectCommit()
}

func TestLoader_UnionsPermissionsAcrossRoles(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	loader := newTestLoader(mockDB)
	ctx := testutil.TenantContext(loaderTenantID, loaderUserID)

	expectRoles(mockDB, authz.RoleAccountant, authz.RoleTeacher)
	expectPermissions(mockDB,
		[]string{authz.RoleAccountant, authz.RoleTeacher},
		"payment:read", "school:read", "timetable:read")

	grant, err := loader.Load(ctx, loaderTenantID, loaderUserID)
	require.NoError(t, err)
	assert.Equal(t, []string{authz.RoleAccountant, authz.RoleTeacher}, grant.Roles)
	assert.Equal(t, []string{"payment:read", "school:read", "timetable:read"}, grant.Permissions)

	mockDB.ExpectationsWereMet(t)
}

func TestLoader_PrincipalGetsWildcard(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	loader := newTestLoader(mockDB)
	ctx := testutil.TenantContext(loaderTenantID, loaderUserID)

	// No role_permissions query is expected for principals.
	expectRoles(mockDB, authz.RolePrincipal)

	grant, err := loader.Load(ctx, loaderTenantID, loaderUserID)
	require.NoError(t, err)
	assert.Equal(t, []string{permissions.Wildcard}, grant.Permissions)

	mockDB.ExpectationsWereMet(t)
}

func TestLoader_NoRolesMeansNoAccess(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	loader := newTestLoader(mockDB)
	ctx := testutil.TenantContext(loaderTenantID, loaderUserID)

	expectRoles(mockDB)

	_, err := loader.Load(ctx, loaderTenantID, loaderUserID)
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NO_TENANT_ACCESS", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestLoader_CachesGrants(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	loader := newTestLoader(mockDB)
	ctx := testutil.TenantContext(loaderTenantID, loaderUserID)

	// One set of queries serves both loads.
	expectRoles(mockDB, authz.RoleTeacher)
	expectPermissions(mockDB, []string{authz.RoleTeacher}, "timetable:read")

	for i := 0; i < 2; i++ {
		grant, err := loader.Load(ctx, loaderTenantID, loaderUserID)
		require.NoError(t, err)
		assert.Equal(t, []string{"timetable:read"}, grant.Permissions)
	}

	mockDB.ExpectationsWereMet(t)
}

func TestLoader_InvalidateForcesReload(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	loader := newTestLoader(mockDB)
	ctx := testutil.TenantContext(loaderTenantID, loaderUserID)

	expectRoles(mockDB, authz.RoleTeacher)
	expectPermissions(mockDB, []string{authz.RoleTeacher}, "timetable:read")

	_, err := loader.Load(ctx, loaderTenantID, loaderUserID)
	require.NoError(t, err)

	loader.Invalidate(loaderTenantID, loaderUserID)

	// The role set changed underneath the cache.
	expectRoles(mockDB, authz.RoleRegistrar, authz.RoleTeacher)
	expectPermissions(mockDB,
		[]string{authz.RoleRegistrar, authz.RoleTeacher},
		"school:manage", "timetable:read")

	grant, err := loader.Load(ctx, loaderTenantID, loaderUserID)
	require.NoError(t, err)
	assert.Equal(t, []string{authz.RoleRegistrar, authz.RoleTeacher}, grant.Roles)

	mockDB.ExpectationsWereMet(t)
}

func TestLoader_CloseIsIdempotent(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	loader := newTestLoader(mockDB)
	loader.Close()
	loader.Close()
}

func TestPlatformOwnerGrant(t *testing.T) {
	grant := authz.PlatformOwnerGrant()

	assert.Equal(t, []string{authz.RolePlatformOwner}, grant.Roles)
	assert.Equal(t, []string{permissions.Wildcard}, grant.Permissions)
}
