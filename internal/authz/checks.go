package authz

import (
	"net/http"
	"strings"

	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/httputil"
	"github.com/eduflow/eduflow-backend/pkg/permissions"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// RequirePermission guards a route with a permission check. Multiple codes
// mean any one of them suffices.
func RequirePermission(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			grant, ok := GrantFrom(r.Context())
			if !ok {
				httputil.Error(w, errors.AuthMissing())
				return
			}
			if !permissions.HasAny(grant.Permissions, codes) {
				httputil.Error(w, errors.PermissionDenied(strings.Join(codes, "|")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAllPermissions guards a route with a conjunctive permission check.
func RequireAllPermissions(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			grant, ok := GrantFrom(r.Context())
			if !ok {
				httputil.Error(w, errors.AuthMissing())
				return
			}
			if !permissions.HasAll(grant.Permissions, codes) {
				httputil.Error(w, errors.PermissionDenied(strings.Join(codes, "+")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole guards a route with a role check. Multiple roles mean any one
// suffices. Platform owners and principals pass regardless of the named
// roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			grant, ok := GrantFrom(r.Context())
			if !ok {
				httputil.Error(w, errors.AuthMissing())
				return
			}
			if grant.HasRole(RolePlatformOwner) || grant.HasRole(RolePrincipal) {
				next.ServeHTTP(w, r)
				return
			}
			if !grant.HasAnyRole(roles...) {
				httputil.Error(w, errors.PermissionDenied(strings.Join(roles, "|")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePlatformOwner guards platform administration routes.
func RequirePlatformOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tenant.IsPlatformOwner(r.Context()) {
			httputil.Error(w, errors.Forbidden("platform owner required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwnership guards routes that expose per-user records. The record
// owner always passes; staff roles pass on behalf of others.
//
// ownerID extracts the owning user's ID from the request, typically a URL
// parameter.
func RequireOwnership(ownerID func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			grant, ok := GrantFrom(r.Context())
			if !ok {
				httputil.Error(w, errors.AuthMissing())
				return
			}

			userID, err := tenant.UserID(r.Context())
			if err == nil && userID == ownerID(r) {
				next.ServeHTTP(w, r)
				return
			}

			if grant.HasAnyRole(ElevatedRoles...) || grant.HasRole(RolePlatformOwner) {
				next.ServeHTTP(w, r)
				return
			}

			httputil.Error(w, errors.Forbidden("not the record owner"))
		})
	}
}
