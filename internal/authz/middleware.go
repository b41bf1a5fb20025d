package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/eduflow/eduflow-backend/internal/auth/jwt"
	"github.com/eduflow/eduflow-backend/internal/tenant/resolver"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/httputil"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

type contextKey string

const grantKey0 contextKey = "authz_grant"

// GrantFrom returns the grant resolved for the request, if any.
func GrantFrom(ctx context.Context) (*Grant, bool) {
	grant, ok := ctx.Value(grantKey0).(*Grant)
	return grant, ok
}

func withGrant(ctx context.Context, grant *Grant) context.Context {
	return context.WithValue(ctx, grantKey0, grant)
}

// Middleware is the authorization pipeline: authenticate the token, bind the
// tenant, load the grant. Handlers downstream see a fully populated identity
// in the request context.
type Middleware struct {
	jwtManager *jwt.Manager
	resolver   *resolver.Resolver
	loader     *Loader
	logger     *logger.Logger
}

// NewMiddleware creates the authorization middleware.
func NewMiddleware(jwtManager *jwt.Manager, res *resolver.Resolver, loader *Loader, log *logger.Logger) *Middleware {
	return &Middleware{
		jwtManager: jwtManager,
		resolver:   res,
		loader:     loader,
		logger:     log,
	}
}

// Authenticate validates the bearer token and binds tenant and grant to the
// request context. This is the gate on every protected route.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.claimsFrom(r)
		if err != nil {
			httputil.Error(w, err)
			return
		}

		ctx := tenant.WithUser(r.Context(), claims.UserID, claims.Email)
		if claims.PlatformOwner {
			ctx = tenant.WithPlatformOwner(ctx)
		}

		bound, err := m.resolver.Resolve(ctx, r, claims.TenantID, claims.PlatformOwner)
		if err != nil {
			httputil.Error(w, err)
			return
		}

		var grant *Grant
		if claims.PlatformOwner {
			grant = PlatformOwnerGrant()
			if bound != nil {
				ctx = tenant.WithTenant(ctx, bound.ID, bound.Slug)
			}
		} else {
			if bound == nil {
				httputil.Error(w, errors.TenantRequired())
				return
			}
			ctx = tenant.WithTenant(ctx, bound.ID, bound.Slug)
			grant, err = m.loader.Load(ctx, bound.ID, claims.UserID)
			if err != nil {
				httputil.Error(w, err)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(withGrant(ctx, grant)))
	})
}

// OptionalAuthenticate attaches the identity when a valid bearer token is
// present and passes the request through untouched otherwise. Used on routes
// that serve both authenticated and anonymous callers.
func (m *Middleware) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.claimsFrom(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := tenant.WithUser(r.Context(), claims.UserID, claims.Email)
		if claims.PlatformOwner {
			ctx = tenant.WithPlatformOwner(ctx)
		} else if claims.TenantID != "" {
			if bound, err := m.resolver.Resolve(ctx, r, claims.TenantID, false); err == nil && bound != nil {
				ctx = tenant.WithTenant(ctx, bound.ID, bound.Slug)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ResolveLoginTenant binds the tenant for unauthenticated login requests so
// the auth service knows which user table to check. Requests without a
// resolvable tenant pass through unbound.
func (m *Middleware) ResolveLoginTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bound, err := m.resolver.ResolveForLogin(r.Context(), r)
		if err != nil {
			httputil.Error(w, err)
			return
		}

		ctx := r.Context()
		if bound != nil {
			ctx = tenant.WithTenant(ctx, bound.ID, bound.Slug)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) claimsFrom(r *http.Request) (*jwt.Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errors.AuthMissing()
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.AuthInvalid()
	}

	claims, err := m.jwtManager.ValidateAccessToken(parts[1])
	if err != nil {
		return nil, err
	}
	return claims, nil
}
