package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eduflow/eduflow-backend/internal/audit/domain"
	"github.com/eduflow/eduflow-backend/internal/audit/service"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/httputil"
	"github.com/eduflow/eduflow-backend/pkg/logger"
)

// PermAuditRead guards the audit log listing.
const PermAuditRead = "audit:read"

// AuditHandler handles audit log endpoints
type AuditHandler struct {
	service *service.AuditService
	logger  *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(svc *service.AuditService, log *logger.Logger) *AuditHandler {
	return &AuditHandler{
		service: svc,
		logger:  log,
	}
}

// List returns audit log entries for the caller's tenant
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := &domain.ListFilter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid limit"))
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid offset"))
			return
		}
		filter.Offset = offset
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid from timestamp, expected RFC3339"))
			return
		}
		filter.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid to timestamp, expected RFC3339"))
			return
		}
		filter.To = &to
	}

	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}
