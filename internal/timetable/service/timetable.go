package service

import (
	"context"
	"fmt"

	auditdomain "github.com/eduflow/eduflow-backend/internal/audit/domain"
	auditservice "github.com/eduflow/eduflow-backend/internal/audit/service"
	schooldomain "github.com/eduflow/eduflow-backend/internal/school/domain"
	schoolrepo "github.com/eduflow/eduflow-backend/internal/school/repository"
	"github.com/eduflow/eduflow-backend/internal/timetable/checker"
	"github.com/eduflow/eduflow-backend/internal/timetable/domain"
	"github.com/eduflow/eduflow-backend/internal/timetable/repository"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/messaging"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// TimetableService orchestrates generation, manual moves, locking and
// finalization of timetables.
type TimetableService struct {
	entries      *repository.EntryRepository
	drafts       *repository.DraftRepository
	years        *schoolrepo.AcademicYearRepository
	classes      *schoolrepo.ClassRepository
	slots        *schoolrepo.TimeSlotRepository
	rooms        *schoolrepo.RoomRepository
	teachers     *schoolrepo.TeacherRepository
	requirements *schoolrepo.RequirementRepository
	solver       *Solver
	audit        *auditservice.AuditService
	publisher    *messaging.Publisher
	logger       *logger.Logger

	// runLocks serializes generation and finalization per
	// (tenant, academic year).
	runLocks *keyedMutex
}

// NewTimetableService creates a new timetable service. publisher may be nil
// when the message bus is not configured.
func NewTimetableService(
	entries *repository.EntryRepository,
	drafts *repository.DraftRepository,
	years *schoolrepo.AcademicYearRepository,
	classes *schoolrepo.ClassRepository,
	slots *schoolrepo.TimeSlotRepository,
	rooms *schoolrepo.RoomRepository,
	teachers *schoolrepo.TeacherRepository,
	requirements *schoolrepo.RequirementRepository,
	solver *Solver,
	audit *auditservice.AuditService,
	publisher *messaging.Publisher,
	log *logger.Logger,
) *TimetableService {
	return &TimetableService{
		entries:      entries,
		drafts:       drafts,
		years:        years,
		classes:      classes,
		slots:        slots,
		rooms:        rooms,
		teachers:     teachers,
		requirements: requirements,
		solver:       solver,
		audit:        audit,
		publisher:    publisher,
		logger:       log,
		runLocks:     newKeyedMutex(),
	}
}

// GenerateRequest is the payload for a generation run
type GenerateRequest struct {
	AcademicYearID string   `json:"academic_year_id" validate:"required,uuid"`
	ClassIDs       []string `json:"class_ids" validate:"omitempty,dive,uuid"`
	PreserveLocked *bool    `json:"preserve_locked"`
}

// Generate runs the placer for an academic year and persists the outcome as
// a new draft.
func (s *TimetableService) Generate(ctx context.Context, req *GenerateRequest) (*domain.GenerateResult, error) {
	key := s.runKey(ctx, req.AcademicYearID)
	s.runLocks.Lock(key)
	defer s.runLocks.Unlock(key)

	if _, err := s.years.GetByID(ctx, req.AcademicYearID); err != nil {
		return nil, err
	}

	// A finalized plan is immutable; regeneration needs an explicit
	// platform-level unlock first.
	if latest, err := s.drafts.Latest(ctx, req.AcademicYearID); err == nil &&
		latest.Status == domain.DraftStatusFinalized {
		return nil, errors.FinalizedReadOnly()
	}

	preserveLocked := true
	if req.PreserveLocked != nil {
		preserveLocked = *req.PreserveLocked
	}

	classes, err := s.classes.ListByAcademicYear(ctx, req.AcademicYearID, req.ClassIDs)
	if err != nil {
		return nil, err
	}
	classIDs := make([]string, len(classes))
	inScope := make(map[string]bool, len(classes))
	for i, class := range classes {
		classIDs[i] = class.ID
		inScope[class.ID] = true
	}

	// All active entries in the year participate in conflict checking;
	// only those in class scope are candidates for clearing.
	allEntries, err := s.entries.ListActive(ctx, req.AcademicYearID, nil)
	if err != nil {
		return nil, err
	}

	var clearIDs []string
	var surviving []*domain.Entry
	for _, entry := range allEntries {
		if inScope[entry.ClassID] && clearable(entry, preserveLocked) {
			clearIDs = append(clearIDs, entry.ID)
			continue
		}
		surviving = append(surviving, entry)
	}

	requirementRows, err := s.requirements.ListByClasses(ctx, classIDs)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.List(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := s.rooms.List(ctx, true)
	if err != nil {
		return nil, err
	}
	teachers, err := s.teachers.ListTeachers(ctx)
	if err != nil {
		return nil, err
	}

	outcome := s.solver.Run(&SolverInputs{
		AcademicYearID: req.AcademicYearID,
		Slots:          slots,
		Rooms:          rooms,
		Teachers:       teachers,
		Requirements:   requirementRows,
		Existing:       surviving,
	})

	draft := &domain.Draft{
		AcademicYearID: req.AcademicYearID,
		PlacedCount:    len(outcome.Placed),
		FailedCount:    len(outcome.Failed),
		SkippedCount:   len(outcome.Skipped),
	}

	if err := s.entries.CommitGeneration(ctx, clearIDs, outcome.Placed, draft); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("academic_year_id", req.AcademicYearID).
		Str("draft_id", draft.ID).
		Int("placed", draft.PlacedCount).
		Int("failed", draft.FailedCount).
		Int("skipped", draft.SkippedCount).
		Msg("timetable generated")

	s.audit.Record(ctx, auditdomain.ActionTimetableGenerated,
		auditservice.WithEntity("timetable_draft", draft.ID),
		auditservice.WithMetadata(map[string]int{
			"placed":  draft.PlacedCount,
			"failed":  draft.FailedCount,
			"skipped": draft.SkippedCount,
		}))
	s.publishEvent(ctx, messaging.EventTimetableGenerated, &messaging.TimetableGeneratedEvent{
		TenantID:       tenant.MustTenantID(ctx),
		AcademicYearID: req.AcademicYearID,
		DraftID:        draft.ID,
		PlacedCount:    draft.PlacedCount,
		FailedCount:    draft.FailedCount,
		SkippedCount:   draft.SkippedCount,
	})

	return &domain.GenerateResult{
		Draft:   draft,
		Placed:  outcome.Placed,
		Failed:  outcome.Failed,
		Skipped: outcome.Skipped,
	}, nil
}

// clearable reports whether a generation run may soft-delete the entry.
// Finalized entries never clear; locked ones only when preserveLocked is
// off.
func clearable(entry *domain.Entry, preserveLocked bool) bool {
	if entry.IsFinalized {
		return false
	}
	if preserveLocked && entry.IsLocked {
		return false
	}
	return true
}

// MoveRequest overlays new placement fields onto an entry
type MoveRequest struct {
	TimeSlotID *string `json:"time_slot_id" validate:"omitempty,uuid"`
	RoomID     *string `json:"room_id" validate:"omitempty,uuid"`
	TeacherID  *string `json:"teacher_id" validate:"omitempty,uuid"`
	Version    int     `json:"version"`
}

// Move re-places a single entry after checking constraints against the rest
// of the year.
func (s *TimetableService) Move(ctx context.Context, entryID string, req *MoveRequest) (*domain.Entry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.IsFinalized {
		return nil, errors.FinalizedReadOnly()
	}

	candidate := domain.Candidate{
		AcademicYearID: entry.AcademicYearID,
		ClassID:        entry.ClassID,
		TeacherID:      entry.TeacherID,
		RoomID:         entry.RoomID,
		TimeSlotID:     entry.TimeSlotID,
	}
	if req.TimeSlotID != nil {
		candidate.TimeSlotID = *req.TimeSlotID
	}
	if req.RoomID != nil {
		candidate.RoomID = *req.RoomID
	}
	if req.TeacherID != nil {
		candidate.TeacherID = *req.TeacherID
	}

	yearEntries, err := s.entries.ListActive(ctx, entry.AcademicYearID, nil)
	if err != nil {
		return nil, err
	}
	teachers, err := s.teachers.ListTeachers(ctx)
	if err != nil {
		return nil, err
	}

	conflicts := checker.Check(candidate, yearEntries, availabilityOf(teachers), entryID)
	if len(conflicts) > 0 {
		details := make(map[string]string, len(conflicts))
		for i, conflict := range conflicts {
			details[fmt.Sprintf("%d:%s", i, conflict.Kind)] = conflict.Message
		}
		return nil, errors.TimetableConflicts(details)
	}

	updated := &domain.Entry{
		ID:         entryID,
		TimeSlotID: candidate.TimeSlotID,
		RoomID:     candidate.RoomID,
		TeacherID:  candidate.TeacherID,
		Version:    entry.Version,
	}
	if req.Version > 0 {
		updated.Version = req.Version
	}

	moved, err := s.entries.Move(ctx, updated)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditdomain.ActionEntryMoved,
		auditservice.WithEntity("timetable_entry", entryID))
	s.publishEvent(ctx, messaging.EventTimetableEntryMoved, moved)

	return moved, nil
}

// Lock pins an entry so regeneration with preserveLocked keeps it.
func (s *TimetableService) Lock(ctx context.Context, entryID string) (*domain.Entry, error) {
	return s.setLock(ctx, entryID, true)
}

// Unlock releases a pinned entry.
func (s *TimetableService) Unlock(ctx context.Context, entryID string) (*domain.Entry, error) {
	return s.setLock(ctx, entryID, false)
}

func (s *TimetableService) setLock(ctx context.Context, entryID string, locked bool) (*domain.Entry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	// Finalized entries are immutable for tenant actors; only a platform
	// owner may unlock them.
	if entry.IsFinalized && !(tenant.IsPlatformOwner(ctx) && !locked) {
		return nil, errors.FinalizedReadOnly()
	}

	updated, err := s.entries.SetLock(ctx, entryID, locked)
	if err != nil {
		return nil, err
	}

	action := auditdomain.ActionEntryLocked
	if !locked {
		action = auditdomain.ActionEntryUnlocked
	}
	s.audit.Record(ctx, action, auditservice.WithEntity("timetable_entry", entryID))
	s.publishEvent(ctx, messaging.EventTimetableEntryLocked, updated)

	return updated, nil
}

// Finalize closes the latest draft and write-protects every active entry in
// the year. Requires a clean run: any failed requirement blocks the latch.
func (s *TimetableService) Finalize(ctx context.Context, academicYearID string) (*domain.Draft, error) {
	key := s.runKey(ctx, academicYearID)
	s.runLocks.Lock(key)
	defer s.runLocks.Unlock(key)

	draft, err := s.drafts.Latest(ctx, academicYearID)
	if err != nil {
		return nil, err
	}
	if draft.Status == domain.DraftStatusFinalized {
		return nil, errors.FinalizedReadOnly()
	}
	if draft.FailedCount > 0 {
		return nil, errors.NotFinalizable(draft.FailedCount)
	}

	entryCount, err := s.entries.Finalize(ctx, academicYearID, draft.ID)
	if err != nil {
		return nil, err
	}
	draft.Status = domain.DraftStatusFinalized

	s.logger.Info().
		Str("academic_year_id", academicYearID).
		Str("draft_id", draft.ID).
		Int("entries", entryCount).
		Msg("timetable finalized")

	s.audit.Record(ctx, auditdomain.ActionTimetableFinalized,
		auditservice.WithEntity("timetable_draft", draft.ID))
	s.publishEvent(ctx, messaging.EventTimetableFinalized, &messaging.TimetableFinalizedEvent{
		TenantID:       tenant.MustTenantID(ctx),
		AcademicYearID: academicYearID,
		DraftID:        draft.ID,
		EntryCount:     entryCount,
	})

	return draft, nil
}

// Status describes the current timetable of an academic year.
type Status struct {
	Draft   *domain.Draft       `json:"draft,omitempty"`
	Entries []*domain.EntryView `json:"entries"`
}

// GetStatus returns the latest draft and the active entries with labels.
func (s *TimetableService) GetStatus(ctx context.Context, academicYearID string) (*Status, error) {
	if _, err := s.years.GetByID(ctx, academicYearID); err != nil {
		return nil, err
	}

	status := &Status{Entries: []*domain.EntryView{}}

	// No draft yet is a valid state; anything else is not.
	draft, err := s.drafts.Latest(ctx, academicYearID)
	switch {
	case err == nil:
		status.Draft = draft
	default:
		var appErr *errors.AppError
		if !errors.As(err, &appErr) || appErr.StatusCode != 404 {
			return nil, err
		}
	}

	views, err := s.entries.ListViews(ctx, academicYearID)
	if err != nil {
		return nil, err
	}
	if views != nil {
		status.Entries = views
	}
	return status, nil
}

func availabilityOf(teachers []*schooldomain.Teacher) checker.AvailabilityFunc {
	byID := make(map[string]*schooldomain.Teacher, len(teachers))
	for _, teacher := range teachers {
		byID[teacher.ID] = teacher
	}
	return func(teacherID, slotID string) bool {
		teacher, ok := byID[teacherID]
		if !ok {
			return true
		}
		return teacher.AvailableAt(slotID)
	}
}

func (s *TimetableService) runKey(ctx context.Context, academicYearID string) string {
	return tenant.MustTenantID(ctx) + ":" + academicYearID
}

func (s *TimetableService) publishEvent(ctx context.Context, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}
