package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eduflow/eduflow-backend/pkg/permissions"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithGrant(grant *Grant) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if grant != nil {
		req = req.WithContext(withGrant(req.Context(), grant))
	}
	return req
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name       string
		grant      *Grant
		codes      []string
		wantStatus int
	}{
		{
			name:       "held permission passes",
			grant:      &Grant{Roles: []string{RoleTeacher}, Permissions: []string{"timetable:read"}},
			codes:      []string{"timetable:read"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "teacher denied payment creation",
			grant:      &Grant{Roles: []string{RoleTeacher}, Permissions: []string{"timetable:read", "school:read"}},
			codes:      []string{"payment:create"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "principal wildcard passes everything",
			grant:      &Grant{Roles: []string{RolePrincipal}, Permissions: []string{permissions.Wildcard}},
			codes:      []string{"payment:create"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "any of several codes suffices",
			grant:      &Grant{Roles: []string{RoleRegistrar}, Permissions: []string{"school:manage"}},
			codes:      []string{"school:read", "school:manage"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no grant in context",
			grant:      nil,
			codes:      []string{"school:read"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RequirePermission(tt.codes...)(okHandler()).ServeHTTP(rr, requestWithGrant(tt.grant))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestRequireAllPermissions(t *testing.T) {
	grant := &Grant{Roles: []string{RoleRegistrar}, Permissions: []string{"school:read", "school:manage"}}

	rr := httptest.NewRecorder()
	RequireAllPermissions("school:read", "school:manage")(okHandler()).
		ServeHTTP(rr, requestWithGrant(grant))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	RequireAllPermissions("school:read", "timetable:generate")(okHandler()).
		ServeHTTP(rr, requestWithGrant(grant))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireRole(t *testing.T) {
	grant := &Grant{Roles: []string{RoleTeacher}, Permissions: []string{"timetable:read"}}

	rr := httptest.NewRecorder()
	RequireRole(RoleTeacher, RolePrincipal)(okHandler()).ServeHTTP(rr, requestWithGrant(grant))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	RequireRole(RoleAccountant)(okHandler()).ServeHTTP(rr, requestWithGrant(grant))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Platform owners and principals pass role checks naming neither of them.
	for _, super := range []string{RolePlatformOwner, RolePrincipal} {
		rr = httptest.NewRecorder()
		RequireRole(RoleRegistrar)(okHandler()).
			ServeHTTP(rr, requestWithGrant(&Grant{Roles: []string{super}}))
		assert.Equal(t, http.StatusOK, rr.Code, "role %s must bypass role checks", super)
	}
}

func TestRequirePlatformOwner(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(tenant.WithPlatformOwner(req.Context()))
	RequirePlatformOwner(okHandler()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), "t-1", "school"))
	RequirePlatformOwner(okHandler()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireOwnership(t *testing.T) {
	ownerID := func(r *http.Request) string { return "user-1" }

	newReq := func(ctx context.Context) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	}

	t.Run("owner passes", func(t *testing.T) {
		ctx := tenant.WithUser(context.Background(), "user-1", "u@test")
		ctx = withGrant(ctx, &Grant{Roles: []string{RoleStudent}})

		rr := httptest.NewRecorder()
		RequireOwnership(ownerID)(okHandler()).ServeHTTP(rr, newReq(ctx))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("student blocked from other records", func(t *testing.T) {
		ctx := tenant.WithUser(context.Background(), "user-2", "u@test")
		ctx = withGrant(ctx, &Grant{Roles: []string{RoleStudent}})

		rr := httptest.NewRecorder()
		RequireOwnership(ownerID)(okHandler()).ServeHTTP(rr, newReq(ctx))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("registrar passes on behalf of others", func(t *testing.T) {
		ctx := tenant.WithUser(context.Background(), "user-2", "u@test")
		ctx = withGrant(ctx, &Grant{Roles: []string{RoleRegistrar}})

		rr := httptest.NewRecorder()
		RequireOwnership(ownerID)(okHandler()).ServeHTTP(rr, newReq(ctx))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestGrantRoleChecks(t *testing.T) {
	grant := &Grant{Roles: []string{RoleTeacher, RoleAccountant}}

	assert.True(t, grant.HasRole(RoleTeacher))
	assert.False(t, grant.HasRole(RolePrincipal))
	assert.True(t, grant.HasAnyRole(RolePrincipal, RoleAccountant))
	assert.False(t, grant.HasAnyRole(RolePrincipal, RoleStudent))
}
