package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eduflow/eduflow-backend/internal/authz"
	"github.com/eduflow/eduflow-backend/internal/school/service"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/httputil"
	"github.com/eduflow/eduflow-backend/pkg/logger"
)

// Permission codes guarding school data.
const (
	PermSchoolRead   = "school:read"
	PermSchoolManage = "school:manage"
)

// SchoolHandler handles CRUD for the scheduling inputs
type SchoolHandler struct {
	service *service.SchoolService
	logger  *logger.Logger
}

// NewSchoolHandler creates a new school handler
func NewSchoolHandler(svc *service.SchoolService, log *logger.Logger) *SchoolHandler {
	return &SchoolHandler{
		service: svc,
		logger:  log,
	}
}

// Routes returns the school subrouter. Reads need school:read, mutations need
// school:manage.
func (h *SchoolHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authz.RequirePermission(PermSchoolRead, PermSchoolManage))
		r.Get("/academic-years", h.ListAcademicYears)
		r.Get("/academic-years/{id}", h.GetAcademicYear)
		r.Get("/academic-years/{id}/classes", h.ListClasses)
		r.Get("/subjects", h.ListSubjects)
		r.Get("/rooms", h.ListRooms)
		r.Get("/time-slots", h.ListTimeSlots)
		r.Get("/teachers", h.ListTeachers)
		r.Get("/classes/{id}/requirements", h.ListRequirements)
	})

	r.Group(func(r chi.Router) {
		r.Use(authz.RequirePermission(PermSchoolManage))
		r.Post("/academic-years", h.CreateAcademicYear)
		r.Put("/academic-years/{id}", h.UpdateAcademicYear)
		r.Delete("/academic-years/{id}", h.DeleteAcademicYear)

		r.Post("/classes", h.CreateClass)
		r.Put("/classes/{id}", h.UpdateClass)
		r.Delete("/classes/{id}", h.DeleteClass)

		r.Post("/subjects", h.CreateSubject)
		r.Put("/subjects/{id}", h.UpdateSubject)
		r.Delete("/subjects/{id}", h.DeleteSubject)

		r.Post("/rooms", h.CreateRoom)
		r.Put("/rooms/{id}", h.UpdateRoom)
		r.Delete("/rooms/{id}", h.DeleteRoom)

		r.Post("/time-slots", h.CreateTimeSlot)
		r.Delete("/time-slots/{id}", h.DeleteTimeSlot)

		r.Put("/teachers/{id}/subjects", h.SetTeacherSubjects)
		r.Put("/teachers/{id}/availability", h.SetTeacherAvailability)

		r.Post("/requirements", h.CreateRequirement)
		r.Put("/requirements/{id}", h.UpdateRequirement)
		r.Delete("/requirements/{id}", h.DeleteRequirement)
	})

	return r
}

// ============================================================================
// Academic years
// ============================================================================

func (h *SchoolHandler) CreateAcademicYear(w http.ResponseWriter, r *http.Request) {
	var req service.AcademicYearRequest
	if !decode(w, r, &req) {
		return
	}
	year, err := h.service.CreateAcademicYear(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, year)
}

func (h *SchoolHandler) ListAcademicYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.ListAcademicYears(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, years)
}

func (h *SchoolHandler) GetAcademicYear(w http.ResponseWriter, r *http.Request) {
	year, err := h.service.GetAcademicYear(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, year)
}

func (h *SchoolHandler) UpdateAcademicYear(w http.ResponseWriter, r *http.Request) {
	var req service.AcademicYearRequest
	if !decode(w, r, &req) {
		return
	}
	year, err := h.service.UpdateAcademicYear(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, year)
}

func (h *SchoolHandler) DeleteAcademicYear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAcademicYear(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// ============================================================================
// Classes
// ============================================================================

func (h *SchoolHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req service.ClassRequest
	if !decode(w, r, &req) {
		return
	}
	class, err := h.service.CreateClass(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, class)
}

func (h *SchoolHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.service.ListClasses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, classes)
}

func (h *SchoolHandler) UpdateClass(w http.ResponseWriter, r *http.Request) {
	var req service.ClassRequest
	if !decode(w, r, &req) {
		return
	}
	class, err := h.service.UpdateClass(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, class)
}

func (h *SchoolHandler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteClass(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// ============================================================================
// Subjects
// ============================================================================

func (h *SchoolHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req service.SubjectRequest
	if !decode(w, r, &req) {
		return
	}
	subject, err := h.service.CreateSubject(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, subject)
}

func (h *SchoolHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, subjects)
}

func (h *SchoolHandler) UpdateSubject(w http.ResponseWriter, r *http.Request) {
	var req service.SubjectRequest
	if !decode(w, r, &req) {
		return
	}
	subject, err := h.service.UpdateSubject(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, subject)
}

func (h *SchoolHandler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSubject(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// ============================================================================
// Rooms
// ============================================================================

func (h *SchoolHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req service.RoomRequest
	if !decode(w, r, &req) {
		return
	}
	room, err := h.service.CreateRoom(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, room)
}

func (h *SchoolHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.ListRooms(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rooms)
}

func (h *SchoolHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req service.RoomRequest
	if !decode(w, r, &req) {
		return
	}
	room, err := h.service.UpdateRoom(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, room)
}

func (h *SchoolHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRoom(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// ============================================================================
// Time slots
// ============================================================================

func (h *SchoolHandler) CreateTimeSlot(w http.ResponseWriter, r *http.Request) {
	var req service.TimeSlotRequest
	if !decode(w, r, &req) {
		return
	}
	slot, err := h.service.CreateTimeSlot(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, slot)
}

func (h *SchoolHandler) ListTimeSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.service.ListTimeSlots(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, slots)
}

func (h *SchoolHandler) DeleteTimeSlot(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTimeSlot(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// ============================================================================
// Teachers
// ============================================================================

func (h *SchoolHandler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.service.ListTeachers(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, teachers)
}

func (h *SchoolHandler) SetTeacherSubjects(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectIDs []string `json:"subject_ids" validate:"required,dive,uuid"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.SetTeacherSubjects(r.Context(), chi.URLParam(r, "id"), req.SubjectIDs); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *SchoolHandler) SetTeacherAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimeSlotID string `json:"time_slot_id" validate:"required,uuid"`
		Available  *bool  `json:"available" validate:"required"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Available == nil {
		httputil.Error(w, errors.Validation(map[string]string{"available": "is required"}))
		return
	}
	if err := h.service.SetTeacherAvailability(r.Context(), chi.URLParam(r, "id"), req.TimeSlotID, *req.Available); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// ============================================================================
// Requirements
// ============================================================================

func (h *SchoolHandler) CreateRequirement(w http.ResponseWriter, r *http.Request) {
	var req service.RequirementRequest
	if !decode(w, r, &req) {
		return
	}
	requirement, err := h.service.CreateRequirement(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, requirement)
}

func (h *SchoolHandler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	requirements, err := h.service.ListRequirements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, requirements)
}

func (h *SchoolHandler) UpdateRequirement(w http.ResponseWriter, r *http.Request) {
	var req service.RequirementRequest
	if !decode(w, r, &req) {
		return
	}
	requirement, err := h.service.UpdateRequirement(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, requirement)
}

func (h *SchoolHandler) DeleteRequirement(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRequirement(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// decode parses and validates the request body, writing the error response on
// failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		httputil.Error(w, err)
		return false
	}
	if err := httputil.Validate(v); err != nil {
		httputil.Error(w, err)
		return false
	}
	return true
}
