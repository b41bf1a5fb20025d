package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eduflow/eduflow-backend/internal/tenant/repository"
	"github.com/eduflow/eduflow-backend/internal/tenant/resolver"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/httputil"
	"github.com/eduflow/eduflow-backend/pkg/logger"
)

// TenantHandler handles platform-owner tenant administration
type TenantHandler struct {
	repo     *repository.TenantRepository
	resolver *resolver.Resolver
	logger   *logger.Logger
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(repo *repository.TenantRepository, res *resolver.Resolver, log *logger.Logger) *TenantHandler {
	return &TenantHandler{
		repo:     repo,
		resolver: res,
		logger:   log,
	}
}

// List returns all tenants
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.repo.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, tenants)
}

// CreateRequest is the payload for provisioning a tenant
type CreateRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
	Slug string `json:"slug" validate:"required,min=2,max=63,lowercase"`
}

// Create provisions a new tenant
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	tenant, err := h.repo.Create(r.Context(), req.Name, req.Slug)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Str("tenant_id", tenant.ID).Str("slug", tenant.Slug).Msg("tenant provisioned")
	httputil.Created(w, tenant)
}

// UpdateStatus moves a tenant between lifecycle states
func (h *TenantHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status" validate:"required,oneof=active suspended deleted"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	tenant, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, errors.NotFound("tenant"))
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), id, req.Status); err != nil {
		httputil.Error(w, err)
		return
	}

	h.resolver.Invalidate(tenant)
	h.logger.Info().Str("tenant_id", id).Str("status", req.Status).Msg("tenant status updated")
	httputil.NoContent(w)
}
