package resolver

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/eduflow/eduflow-backend/internal/tenant/repository"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/logger"
)

// Header names understood by the resolver.
const (
	HeaderTenantID         = "X-Tenant-Id"
	HeaderImpersonateSlug  = "X-Impersonate-Tenant"
	defaultCacheTTL        = 30 * time.Second
	defaultCacheMaxEntries = 1024
)

// Resolver turns a request into a tenant binding. Resolution order: token
// claim, X-Tenant-Id header, subdomain. Platform owners additionally may bind
// any tenant via X-Impersonate-Tenant. Lookups go through a short-lived cache
// so every request does not hit the tenants table.
type Resolver struct {
	repo       *repository.TenantRepository
	baseDomain string
	logger     *logger.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	tenant    *repository.Tenant
	expiresAt time.Time
}

// NewResolver creates a new resolver. baseDomain is the apex under which
// tenant subdomains live, e.g. "eduflow.app" for "greenfield.eduflow.app".
func NewResolver(repo *repository.TenantRepository, baseDomain string, log *logger.Logger) *Resolver {
	return &Resolver{
		repo:       repo,
		baseDomain: baseDomain,
		logger:     log,
		cache:      make(map[string]cacheEntry),
		ttl:        defaultCacheTTL,
	}
}

// Resolve binds the request to a tenant. claimTenantID is the tenant claim
// from the access token, empty for unauthenticated requests and platform
// owners. A nil tenant with nil error means a platform owner chose not to
// bind a tenant, which is valid for platform-level routes.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, claimTenantID string, isPlatformOwner bool) (*repository.Tenant, error) {
	if isPlatformOwner {
		if slug := req.Header.Get(HeaderImpersonateSlug); slug != "" {
			return r.activeBySlug(ctx, slug)
		}
		return nil, nil
	}

	if claimTenantID != "" {
		return r.activeByID(ctx, claimTenantID)
	}

	if id := req.Header.Get(HeaderTenantID); id != "" {
		return r.activeByID(ctx, id)
	}

	if slug := r.subdomain(req.Host); slug != "" {
		return r.activeBySlug(ctx, slug)
	}

	return nil, errors.TenantRequired()
}

// ResolveForLogin binds a login request to a tenant before any identity
// exists. A nil tenant means the credentials will be checked against
// platform-owner accounts.
func (r *Resolver) ResolveForLogin(ctx context.Context, req *http.Request) (*repository.Tenant, error) {
	if id := req.Header.Get(HeaderTenantID); id != "" {
		return r.activeByID(ctx, id)
	}
	if slug := r.subdomain(req.Host); slug != "" {
		return r.activeBySlug(ctx, slug)
	}
	return nil, nil
}

func (r *Resolver) activeByID(ctx context.Context, id string) (*repository.Tenant, error) {
	tenant, err := r.lookup(ctx, "id:"+id, func() (*repository.Tenant, error) {
		return r.repo.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if !tenant.Active() {
		return nil, errors.TenantInactive(tenant.Slug)
	}
	return tenant, nil
}

func (r *Resolver) activeBySlug(ctx context.Context, slug string) (*repository.Tenant, error) {
	tenant, err := r.lookup(ctx, "slug:"+slug, func() (*repository.Tenant, error) {
		return r.repo.GetBySlug(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	if !tenant.Active() {
		return nil, errors.TenantInactive(tenant.Slug)
	}
	return tenant, nil
}

// subdomain extracts the tenant slug from the Host header. Hosts outside the
// base domain, or the base domain itself, yield no slug.
func (r *Resolver) subdomain(host string) string {
	if r.baseDomain == "" {
		return ""
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	suffix := "." + r.baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

func (r *Resolver) lookup(ctx context.Context, key string, fetch func() (*repository.Tenant, error)) (*repository.Tenant, error) {
	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.tenant, nil
	}

	tenant, err := fetch()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if len(r.cache) >= defaultCacheMaxEntries {
		r.cache = make(map[string]cacheEntry)
	}
	r.cache[key] = cacheEntry{tenant: tenant, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return tenant, nil
}

// Invalidate drops any cached copies of the tenant. Called when a tenant's
// status changes so suspension takes effect within one request, not one TTL.
func (r *Resolver) Invalidate(tenant *repository.Tenant) {
	r.mu.Lock()
	delete(r.cache, "id:"+tenant.ID)
	delete(r.cache, "slug:"+tenant.Slug)
	r.mu.Unlock()
}
