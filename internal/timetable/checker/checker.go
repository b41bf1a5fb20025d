// Package checker implements the placement constraint check as a pure
// function over in-memory state. The generator calls it against its working
// set; the manual move path calls it against persisted entries.
package checker

import (
	"github.com/eduflow/eduflow-backend/internal/timetable/domain"
)

// AvailabilityFunc reports whether a teacher can teach at a slot. Only an
// explicit false blocks placement; unknown teachers or slots are available.
type AvailabilityFunc func(teacherID, timeSlotID string) bool

// Check returns every constraint the candidate violates against the given
// entries. Entries that are inactive, deleted, outside the candidate's
// academic year, or equal to a non-empty excludeEntryID are ignored. An
// empty result means the placement is safe.
func Check(candidate domain.Candidate, entries []*domain.Entry, available AvailabilityFunc, excludeEntryID string) []domain.Conflict {
	var conflicts []domain.Conflict

	for _, e := range entries {
		// Unsaved working entries have empty IDs and must still conflict.
		if excludeEntryID != "" && e.ID == excludeEntryID {
			continue
		}
		if !e.IsActive || e.DeletedAt != nil {
			continue
		}
		if e.AcademicYearID != candidate.AcademicYearID {
			continue
		}
		if e.TimeSlotID != candidate.TimeSlotID {
			continue
		}

		if e.RoomID == candidate.RoomID {
			conflicts = append(conflicts, domain.Conflict{
				Kind:       domain.ConflictRoomDoubleBooked,
				EntryID:    e.ID,
				TimeSlotID: candidate.TimeSlotID,
				Message:    "room is already booked for this time slot",
			})
		}
		if e.TeacherID == candidate.TeacherID {
			conflicts = append(conflicts, domain.Conflict{
				Kind:       domain.ConflictTeacherDoubleBooked,
				EntryID:    e.ID,
				TimeSlotID: candidate.TimeSlotID,
				Message:    "teacher is already booked for this time slot",
			})
		}
		if e.ClassID == candidate.ClassID {
			conflicts = append(conflicts, domain.Conflict{
				Kind:       domain.ConflictClassDoubleBooked,
				EntryID:    e.ID,
				TimeSlotID: candidate.TimeSlotID,
				Message:    "class is already booked for this time slot",
			})
		}
	}

	if available != nil && !available(candidate.TeacherID, candidate.TimeSlotID) {
		conflicts = append(conflicts, domain.Conflict{
			Kind:       domain.ConflictTeacherUnavailable,
			TimeSlotID: candidate.TimeSlotID,
			Message:    "teacher is not available at this time slot",
		})
	}

	return conflicts
}
