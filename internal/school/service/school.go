package service

import (
	"context"
	"time"

	auditdomain "github.com/eduflow/eduflow-backend/internal/audit/domain"
	auditservice "github.com/eduflow/eduflow-backend/internal/audit/service"
	"github.com/eduflow/eduflow-backend/internal/school/domain"
	"github.com/eduflow/eduflow-backend/internal/school/repository"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/logger"
)

// SchoolService manages the scheduling inputs: academic years, classes,
// subjects, rooms, time slots, teacher data, and requirements.
type SchoolService struct {
	years        *repository.AcademicYearRepository
	classes      *repository.ClassRepository
	subjects     *repository.SubjectRepository
	rooms        *repository.RoomRepository
	slots        *repository.TimeSlotRepository
	teachers     *repository.TeacherRepository
	requirements *repository.RequirementRepository
	audit        *auditservice.AuditService
	logger       *logger.Logger
}

// NewSchoolService creates a new school service
func NewSchoolService(
	years *repository.AcademicYearRepository,
	classes *repository.ClassRepository,
	subjects *repository.SubjectRepository,
	rooms *repository.RoomRepository,
	slots *repository.TimeSlotRepository,
	teachers *repository.TeacherRepository,
	requirements *repository.RequirementRepository,
	audit *auditservice.AuditService,
	log *logger.Logger,
) *SchoolService {
	return &SchoolService{
		years:        years,
		classes:      classes,
		subjects:     subjects,
		rooms:        rooms,
		slots:        slots,
		teachers:     teachers,
		requirements: requirements,
		audit:        audit,
		logger:       log,
	}
}

// ============================================================================
// Academic years
// ============================================================================

// AcademicYearRequest is the create/update payload for academic years
type AcademicYearRequest struct {
	Name      string    `json:"name" validate:"required,min=2,max=120"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Active    bool      `json:"active"`
	Version   int       `json:"version"`
}

// CreateAcademicYear creates an academic year.
func (s *SchoolService) CreateAcademicYear(ctx context.Context, req *AcademicYearRequest) (*domain.AcademicYear, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, errors.Validation(map[string]string{"end_date": "must be after start_date"})
	}

	year := &domain.AcademicYear{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Active:    req.Active,
	}
	if err := s.years.Create(ctx, year); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityCreated,
		auditservice.WithEntity("academic_year", year.ID))
	return year, nil
}

// ListAcademicYears lists academic years.
func (s *SchoolService) ListAcademicYears(ctx context.Context) ([]*domain.AcademicYear, error) {
	return s.years.List(ctx)
}

// GetAcademicYear returns one academic year.
func (s *SchoolService) GetAcademicYear(ctx context.Context, id string) (*domain.AcademicYear, error) {
	return s.years.GetByID(ctx, id)
}

// UpdateAcademicYear applies a version-guarded update.
func (s *SchoolService) UpdateAcademicYear(ctx context.Context, id string, req *AcademicYearRequest) (*domain.AcademicYear, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, errors.Validation(map[string]string{"end_date": "must be after start_date"})
	}

	year := &domain.AcademicYear{
		ID:        id,
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Active:    req.Active,
		Version:   req.Version,
	}
	if err := s.years.Update(ctx, year); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityUpdated,
		auditservice.WithEntity("academic_year", id))
	return s.years.GetByID(ctx, id)
}

// DeleteAcademicYear soft-deletes an academic year.
func (s *SchoolService) DeleteAcademicYear(ctx context.Context, id string) error {
	if err := s.years.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditdomain.ActionEntityDeleted,
		auditservice.WithEntity("academic_year", id))
	return nil
}

// ============================================================================
// Classes
// ============================================================================

// ClassRequest is the create/update payload for classes
type ClassRequest struct {
	AcademicYearID string `json:"academic_year_id" validate:"required,uuid"`
	Name           string `json:"name" validate:"required,min=1,max=60"`
	Grade          int    `json:"grade" validate:"gte=0,lte=13"`
	Version        int    `json:"version"`
}

// CreateClass creates a class in an academic year.
func (s *SchoolService) CreateClass(ctx context.Context, req *ClassRequest) (*domain.Class, error) {
	if _, err := s.years.GetByID(ctx, req.AcademicYearID); err != nil {
		return nil, err
	}

	class := &domain.Class{
		AcademicYearID: req.AcademicYearID,
		Name:           req.Name,
		Grade:          req.Grade,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityCreated,
		auditservice.WithEntity("class", class.ID))
	return class, nil
}

// ListClasses lists classes in an academic year.
func (s *SchoolService) ListClasses(ctx context.Context, academicYearID string) ([]*domain.Class, error) {
	return s.classes.ListByAcademicYear(ctx, academicYearID, nil)
}

// UpdateClass applies a version-guarded update.
func (s *SchoolService) UpdateClass(ctx context.Context, id string, req *ClassRequest) (*domain.Class, error) {
	class := &domain.Class{
		ID:      id,
		Name:    req.Name,
		Grade:   req.Grade,
		Version: req.Version,
	}
	if err := s.classes.Update(ctx, class); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityUpdated,
		auditservice.WithEntity("class", id))
	return s.classes.GetByID(ctx, id)
}

// DeleteClass soft-deletes a class.
func (s *SchoolService) DeleteClass(ctx context.Context, id string) error {
	if err := s.classes.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditdomain.ActionEntityDeleted,
		auditservice.WithEntity("class", id))
	return nil
}

// ============================================================================
// Subjects
// ============================================================================

// SubjectRequest is the create/update payload for subjects
type SubjectRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Code    string `json:"code" validate:"required,min=1,max=16"`
	Version int    `json:"version"`
}

// CreateSubject creates a subject.
func (s *SchoolService) CreateSubject(ctx context.Context, req *SubjectRequest) (*domain.Subject, error) {
	subject := &domain.Subject{Name: req.Name, Code: req.Code}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityCreated,
		auditservice.WithEntity("subject", subject.ID))
	return subject, nil
}

// ListSubjects lists subjects.
func (s *SchoolService) ListSubjects(ctx context.Context) ([]*domain.Subject, error) {
	return s.subjects.List(ctx)
}

// UpdateSubject applies a version-guarded update.
func (s *SchoolService) UpdateSubject(ctx context.Context, id string, req *SubjectRequest) (*domain.Subject, error) {
	subject := &domain.Subject{ID: id, Name: req.Name, Code: req.Code, Version: req.Version}
	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityUpdated,
		auditservice.WithEntity("subject", id))
	return s.subjects.GetByID(ctx, id)
}

// DeleteSubject soft-deletes a subject.
func (s *SchoolService) DeleteSubject(ctx context.Context, id string) error {
	if err := s.subjects.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditdomain.ActionEntityDeleted,
		auditservice.WithEntity("subject", id))
	return nil
}

// ============================================================================
// Rooms
// ============================================================================

// RoomRequest is the create/update payload for rooms
type RoomRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=60"`
	Capacity  int    `json:"capacity" validate:"gte=1,lte=1000"`
	Available bool   `json:"available"`
	Version   int    `json:"version"`
}

// CreateRoom creates a room.
func (s *SchoolService) CreateRoom(ctx context.Context, req *RoomRequest) (*domain.Room, error) {
	room := &domain.Room{Name: req.Name, Capacity: req.Capacity, Available: req.Available}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityCreated,
		auditservice.WithEntity("room", room.ID))
	return room, nil
}

// ListRooms lists rooms.
func (s *SchoolService) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	return s.rooms.List(ctx, false)
}

// UpdateRoom applies a version-guarded update.
func (s *SchoolService) UpdateRoom(ctx context.Context, id string, req *RoomRequest) (*domain.Room, error) {
	room := &domain.Room{
		ID:        id,
		Name:      req.Name,
		Capacity:  req.Capacity,
		Available: req.Available,
		Version:   req.Version,
	}
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityUpdated,
		auditservice.WithEntity("room", id))
	return s.rooms.GetByID(ctx, id)
}

// DeleteRoom soft-deletes a room.
func (s *SchoolService) DeleteRoom(ctx context.Context, id string) error {
	if err := s.rooms.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditdomain.ActionEntityDeleted,
		auditservice.WithEntity("room", id))
	return nil
}

// ============================================================================
// Time slots
// ============================================================================

// TimeSlotRequest is the create payload for time slots
type TimeSlotRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"gte=0,lte=6"`
	StartTime string `json:"start_time" validate:"required,len=5"`
	EndTime   string `json:"end_time" validate:"required,len=5"`
}

// CreateTimeSlot creates a time slot.
func (s *SchoolService) CreateTimeSlot(ctx context.Context, req *TimeSlotRequest) (*domain.TimeSlot, error) {
	if req.EndTime <= req.StartTime {
		return nil, errors.Validation(map[string]string{"end_time": "must be after start_time"})
	}

	slot := &domain.TimeSlot{
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityCreated,
		auditservice.WithEntity("time_slot", slot.ID))
	return slot, nil
}

// ListTimeSlots lists time slots in week order.
func (s *SchoolService) ListTimeSlots(ctx context.Context) ([]*domain.TimeSlot, error) {
	return s.slots.List(ctx)
}

// DeleteTimeSlot soft-deletes a slot unless entries reference it.
func (s *SchoolService) DeleteTimeSlot(ctx context.Context, id string) error {
	if err := s.slots.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditdomain.ActionEntityDeleted,
		auditservice.WithEntity("time_slot", id))
	return nil
}

// ============================================================================
// Teachers
// ============================================================================

// ListTeachers returns the scheduling view of all teachers.
func (s *SchoolService) ListTeachers(ctx context.Context) ([]*domain.Teacher, error) {
	return s.teachers.ListTeachers(ctx)
}

// SetTeacherSubjects replaces a teacher's qualified subjects.
func (s *SchoolService) SetTeacherSubjects(ctx context.Context, teacherID string, subjectIDs []string) error {
	if err := s.teachers.SetSubjects(ctx, teacherID, subjectIDs); err != nil {
		return err
	}
	s.audit.Record(ctx, auditdomain.ActionEntityUpdated,
		auditservice.WithEntity("teacher_subjects", teacherID))
	return nil
}

// SetTeacherAvailability records a teacher's availability at a slot.
func (s *SchoolService) SetTeacherAvailability(ctx context.Context, teacherID, timeSlotID string, available bool) error {
	if err := s.teachers.SetAvailability(ctx, teacherID, timeSlotID, available); err != nil {
		return err
	}
	s.audit.Record(ctx, auditdomain.ActionEntityUpdated,
		auditservice.WithEntity("teacher_availability", teacherID))
	return nil
}

// ============================================================================
// Requirements
// ============================================================================

// RequirementRequest is the create/update payload for requirements
type RequirementRequest struct {
	ClassID        string  `json:"class_id" validate:"required,uuid"`
	SubjectID      string  `json:"subject_id" validate:"required,uuid"`
	TeacherID      *string `json:"teacher_id" validate:"omitempty,uuid"`
	PeriodsPerWeek int     `json:"periods_per_week" validate:"gte=1,lte=40"`
	Version        int     `json:"version"`
}

// CreateRequirement creates a class-subject requirement.
func (s *SchoolService) CreateRequirement(ctx context.Context, req *RequirementRequest) (*domain.ClassSubjectRequirement, error) {
	if _, err := s.classes.GetByID(ctx, req.ClassID); err != nil {
		return nil, err
	}
	if _, err := s.subjects.GetByID(ctx, req.SubjectID); err != nil {
		return nil, err
	}

	requirement := &domain.ClassSubjectRequirement{
		ClassID:        req.ClassID,
		SubjectID:      req.SubjectID,
		TeacherID:      req.TeacherID,
		PeriodsPerWeek: req.PeriodsPerWeek,
	}
	if err := s.requirements.Create(ctx, requirement); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityCreated,
		auditservice.WithEntity("requirement", requirement.ID))
	return requirement, nil
}

// ListRequirements lists the requirements for one class.
func (s *SchoolService) ListRequirements(ctx context.Context, classID string) ([]*domain.ClassSubjectRequirement, error) {
	return s.requirements.ListByClasses(ctx, []string{classID})
}

// UpdateRequirement applies a version-guarded update.
func (s *SchoolService) UpdateRequirement(ctx context.Context, id string, req *RequirementRequest) (*domain.ClassSubjectRequirement, error) {
	requirement := &domain.ClassSubjectRequirement{
		ID:             id,
		SubjectID:      req.SubjectID,
		TeacherID:      req.TeacherID,
		PeriodsPerWeek: req.PeriodsPerWeek,
		Version:        req.Version,
	}
	if err := s.requirements.Update(ctx, requirement); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntityUpdated,
		auditservice.WithEntity("requirement", id))
	return s.requirements.GetByID(ctx, id)
}

// DeleteRequirement soft-deletes a requirement.
func (s *SchoolService) DeleteRequirement(ctx context.Context, id string) error {
	if err := s.requirements.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditdomain.ActionEntityDeleted,
		auditservice.WithEntity("requirement", id))
	return nil
}
