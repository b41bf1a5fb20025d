package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eduflow/eduflow-backend/internal/authz"
	"github.com/eduflow/eduflow-backend/internal/timetable/service"
	"github.com/eduflow/eduflow-backend/pkg/httputil"
	"github.com/eduflow/eduflow-backend/pkg/logger"
)

// Permission codes guarding timetable operations.
const (
	PermTimetableRead     = "timetable:read"
	PermTimetableGenerate = "timetable:generate"
	PermTimetableMove     = "timetable:move"
	PermTimetableFinalize = "timetable:finalize"
)

// TimetableHandler handles timetable endpoints
type TimetableHandler struct {
	service *service.TimetableService
	logger  *logger.Logger
}

// NewTimetableHandler creates a new timetable handler
func NewTimetableHandler(svc *service.TimetableService, log *logger.Logger) *TimetableHandler {
	return &TimetableHandler{
		service: svc,
		logger:  log,
	}
}

// Routes returns the timetable subrouter.
func (h *TimetableHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(authz.RequirePermission(PermTimetableRead, PermTimetableGenerate)).
		Get("/academic-years/{yearID}/status", h.Status)

	r.With(authz.RequirePermission(PermTimetableGenerate)).
		Post("/generate", h.Generate)

	r.With(authz.RequirePermission(PermTimetableFinalize)).
		Post("/academic-years/{yearID}/finalize", h.Finalize)

	r.Group(func(r chi.Router) {
		r.Use(authz.RequirePermission(PermTimetableMove))
		r.Put("/entries/{id}/move", h.Move)
		r.Post("/entries/{id}/lock", h.Lock)
		r.Post("/entries/{id}/unlock", h.Unlock)
	})

	return r
}

// Generate runs the timetable generator
func (h *TimetableHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Generate(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// Status returns the latest draft and active entries for a year
func (h *TimetableHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetStatus(r.Context(), chi.URLParam(r, "yearID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, status)
}

// Move re-places one entry
func (h *TimetableHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req service.MoveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := h.service.Move(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, entry)
}

// Finalize closes the latest draft for a year
func (h *TimetableHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.Finalize(r.Context(), chi.URLParam(r, "yearID"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, draft)
}

// Lock pins an entry against regeneration
func (h *TimetableHandler) Lock(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Lock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, entry)
}

// Unlock releases a pinned entry
func (h *TimetableHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Unlock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, entry)
}
