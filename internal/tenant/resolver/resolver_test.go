package resolver_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-backend/internal/tenant/repository"
	"github.com/eduflow/eduflow-backend/internal/tenant/resolver"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/testutil"
)

const baseDomain = "eduflow.test"

func tenantRows(id, slug, status string) *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows("id", "name", "slug", "status", "created_at", "updated_at").
		AddRow(id, "North High", slug, status, now, now)
}

func expectLookup(m *testutil.MockDB, rows *sqlmock.Rows) {
	m.ExpectUnscopedTx()
	m.Mock.ExpectQuery("FROM tenants").WillReturnRows(rows)
	m.ExpectCommit()
}

func TestResolver_ClaimTakesPrecedence(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	res := resolver.NewResolver(repository.NewTenantRepository(mockDB.DB), baseDomain, logger.NewNop())

	expectLookup(mockDB, tenantRows("tenant-1", "north-high", repository.StatusActive))

	// Header and subdomain disagree with the claim; the claim wins.
	req := httptest.NewRequest("GET", "http://other-school.eduflow.test/", nil)
	req.Header.Set(resolver.HeaderTenantID, "tenant-2")

	tenant, err := res.Resolve(context.Background(), req, "tenant-1", false)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", tenant.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestResolver_HeaderBeforeSubdomain(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	res := resolver.NewResolver(repository.NewTenantRepository(mockDB.DB), baseDomain, logger.NewNop())

	expectLookup(mockDB, tenantRows("tenant-2", "east-side", repository.StatusActive))

	req := httptest.NewRequest("GET", "http://north-high.eduflow.test/", nil)
	req.Header.Set(resolver.HeaderTenantID, "tenant-2")

	tenant, err := res.Resolve(context.Background(), req, "", false)
	require.NoError(t, err)
	assert.Equal(t, "tenant-2", tenant.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestResolver_Subdomain(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	res := resolver.NewResolver(repository.NewTenantRepository(mockDB.DB), baseDomain, logger.NewNop())

	expectLookup(mockDB, tenantRows("tenant-3", "north-high", repository.StatusActive))

	req := httptest.NewRequest("GET", "http://north-high.eduflow.test:8080/", nil)

	tenant, err := res.Resolve(context.Background(), req, "", false)
	require.NoError(t, err)
	assert.Equal(t, "north-high", tenant.Slug)

	mockDB.ExpectationsWereMet(t)
}

func TestResolver_NoBindingForTenantUser(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	res := resolver.NewResolver(repository.NewTenantRepository(mockDB.DB), baseDomain, logger.NewNop())

	// Host outside the base domain, no claim, no header.
	req := httptest.NewRequest("GET", "http://api.elsewhere.example/", nil)

	_, err := res.Resolve(context.Background(), req, "", false)
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TENANT_REQUIRED", appErr.Code)
}

func TestResolver_InactiveTenantRejected(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	res := resolver.NewResolver(repository.NewTenantRepository(mockDB.DB), baseDomain, logger.NewNop())

	expectLookup(mockDB, tenantRows("tenant-4", "closed-school", repository.StatusSuspended))

	req := httptest.NewRequest("GET", "http://x/", nil)
	req.Header.Set(resolver.HeaderTenantID, "tenant-4")

	_, err := res.Resolve(context.Background(), req, "", false)
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TENANT_INACTIVE", appErr.Code)
}

func TestResolver_PlatformOwner(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	res := resolver.NewResolver(repository.NewTenantRepository(mockDB.DB), baseDomain, logger.NewNop())

	t.Run("unbound without impersonation header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "http://admin.eduflow.test/", nil)

		tenant, err := res.Resolve(context.Background(), req, "", true)
		require.NoError(t, err)
		assert.Nil(t, tenant, "platform owner without impersonation binds no tenant")
	})

	t.Run("impersonation binds by slug", func(t *testing.T) {
		expectLookup(mockDB, tenantRows("tenant-5", "north-high", repository.StatusActive))

		req := httptest.NewRequest("GET", "http://x/", nil)
		req.Header.Set(resolver.HeaderImpersonateSlug, "north-high")

		tenant, err := res.Resolve(context.Background(), req, "", true)
		require.NoError(t, err)
		require.NotNil(t, tenant)
		assert.Equal(t, "tenant-5", tenant.ID)

		mockDB.ExpectationsWereMet(t)
	})
}

func TestResolver_CachesLookups(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	res := resolver.NewResolver(repository.NewTenantRepository(mockDB.DB), baseDomain, logger.NewNop())

	// Only one database round trip is expected for two resolutions.
	expectLookup(mockDB, tenantRows("tenant-6", "north-high", repository.StatusActive))

	req := httptest.NewRequest("GET", "http://x/", nil)
	req.Header.Set(resolver.HeaderTenantID, "tenant-6")

	for i := 0; i < 2; i++ {
		tenant, err := res.Resolve(context.Background(), req, "", false)
		require.NoError(t, err)
		assert.Equal(t, "tenant-6", tenant.ID)
	}

	mockDB.ExpectationsWereMet(t)
}

func TestResolver_ResolveForLogin(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	res := resolver.NewResolver(repository.NewTenantRepository(mockDB.DB), baseDomain, logger.NewNop())

	// No tenant signal at all: platform-owner login path.
	req := httptest.NewRequest("POST", "http://api.elsewhere.example/login", nil)
	tenant, err := res.ResolveForLogin(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, tenant)
}
