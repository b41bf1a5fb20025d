package checker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-backend/internal/timetable/checker"
	"github.com/eduflow/eduflow-backend/internal/timetable/domain"
	"github.com/eduflow/eduflow-backend/pkg/testutil"
)

func TestCheck_NoConflicts(t *testing.T) {
	f := testutil.NewFixtureFactory("")
	year := f.AcademicYear()
	slot := f.TimeSlot(1, 8)
	otherSlot := f.TimeSlot(1, 9)

	existing := f.Entry(year.ID, "class-a", "subj-1", "teacher-1", "room-1", otherSlot.ID)

	candidate := domain.Candidate{
		AcademicYearID: year.ID,
		ClassID:        "class-a",
		TeacherID:      "teacher-1",
		RoomID:         "room-1",
		TimeSlotID:     slot.ID,
	}

	conflicts := checker.Check(candidate, []*domain.Entry{existing}, nil, "")
	assert.Empty(t, conflicts)
}

func TestCheck_ConflictKinds(t *testing.T) {
	f := testutil.NewFixtureFactory("")
	year := f.AcademicYear()
	slot := f.TimeSlot(1, 8)

	existing := f.Entry(year.ID, "class-a", "subj-1", "teacher-1", "room-1", slot.ID)

	tests := []struct {
		name      string
		candidate domain.Candidate
		wantKinds []string
	}{
		{
			name: "room double booked",
			candidate: domain.Candidate{
				AcademicYearID: year.ID,
				ClassID:        "class-b",
				TeacherID:      "teacher-2",
				RoomID:         "room-1",
				TimeSlotID:     slot.ID,
			},
			wantKinds: []string{domain.ConflictRoomDoubleBooked},
		},
		{
			name: "teacher double booked",
			candidate: domain.Candidate{
				AcademicYearID: year.ID,
				ClassID:        "class-b",
				TeacherID:      "teacher-1",
				RoomID:         "room-2",
				TimeSlotID:     slot.ID,
			},
			wantKinds: []string{domain.ConflictTeacherDoubleBooked},
		},
		{
			name: "class double booked",
			candidate: domain.Candidate{
				AcademicYearID: year.ID,
				ClassID:        "class-a",
				TeacherID:      "teacher-2",
				RoomID:         "room-2",
				TimeSlotID:     slot.ID,
			},
			wantKinds: []string{domain.ConflictClassDoubleBooked},
		},
		{
			name: "all three at once",
			candidate: domain.Candidate{
				AcademicYearID: year.ID,
				ClassID:        "class-a",
				TeacherID:      "teacher-1",
				RoomID:         "room-1",
				TimeSlotID:     slot.ID,
			},
			wantKinds: []string{
				domain.ConflictRoomDoubleBooked,
				domain.ConflictTeacherDoubleBooked,
				domain.ConflictClassDoubleBooked,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := checker.Check(tt.candidate, []*domain.Entry{existing}, nil, "")
			require.Len(t, conflicts, len(tt.wantKinds))
			for i, kind := range tt.wantKinds {
				assert.Equal(t, kind, conflicts[i].Kind)
				assert.Equal(t, existing.ID, conflicts[i].EntryID)
			}
		})
	}
}

func TestCheck_TeacherUnavailable(t *testing.T) {
	f := testutil.NewFixtureFactory("")
	year := f.AcademicYear()
	slot := f.TimeSlot(1, 8)

	candidate := domain.Candidate{
		AcademicYearID: year.ID,
		ClassID:        "class-a",
		TeacherID:      "teacher-1",
		RoomID:         "room-1",
		TimeSlotID:     slot.ID,
	}

	available := func(teacherID, slotID string) bool {
		return !(teacherID == "teacher-1" && slotID == slot.ID)
	}

	conflicts := checker.Check(candidate, nil, available, "")
	require.Len(t, conflicts, 1)
	assert.Equal(t, domain.ConflictTeacherUnavailable, conflicts[0].Kind)
}

func TestCheck_ExcludesEntryBeingMoved(t *testing.T) {
	f := testutil.NewFixtureFactory("")
	year := f.AcademicYear()
	slot := f.TimeSlot(1, 8)

	// Moving an entry within its own slot must not conflict with itself.
	entry := f.Entry(year.ID, "class-a", "subj-1", "teacher-1", "room-1", slot.ID)

	candidate := domain.Candidate{
		AcademicYearID: year.ID,
		ClassID:        entry.ClassID,
		TeacherID:      entry.TeacherID,
		RoomID:         entry.RoomID,
		TimeSlotID:     entry.TimeSlotID,
	}

	conflicts := checker.Check(candidate, []*domain.Entry{entry}, nil, entry.ID)
	assert.Empty(t, conflicts)

	// Without the exclusion the same candidate conflicts three ways.
	conflicts = checker.Check(candidate, []*domain.Entry{entry}, nil, "")
	assert.Len(t, conflicts, 3)
}

func TestCheck_UnsavedEntriesStillConflict(t *testing.T) {
	f := testutil.NewFixtureFactory("")
	year := f.AcademicYear()
	slot := f.TimeSlot(1, 8)

	// A working entry the generator has not persisted yet carries no ID. An
	// empty exclusion must not skip it.
	working := f.Entry(year.ID, "class-a", "subj-1", "teacher-1", "room-1", slot.ID)
	working.ID = ""

	candidate := domain.Candidate{
		AcademicYearID: year.ID,
		ClassID:        "class-b",
		TeacherID:      "teacher-1",
		RoomID:         "room-2",
		TimeSlotID:     slot.ID,
	}

	conflicts := checker.Check(candidate, []*domain.Entry{working}, nil, "")
	require.Len(t, conflicts, 1)
	assert.Equal(t, domain.ConflictTeacherDoubleBooked, conflicts[0].Kind)
}

func TestCheck_IgnoresInactiveAndForeignEntries(t *testing.T) {
	f := testutil.NewFixtureFactory("")
	year := f.AcademicYear()
	otherYear := f.AcademicYear()
	slot := f.TimeSlot(1, 8)

	inactive := f.Entry(year.ID, "class-a", "subj-1", "teacher-1", "room-1", slot.ID)
	inactive.IsActive = false

	foreign := f.Entry(otherYear.ID, "class-a", "subj-1", "teacher-1", "room-1", slot.ID)

	candidate := domain.Candidate{
		AcademicYearID: year.ID,
		ClassID:        "class-a",
		TeacherID:      "teacher-1",
		RoomID:         "room-1",
		TimeSlotID:     slot.ID,
	}

	conflicts := checker.Check(candidate, []*domain.Entry{inactive, foreign}, nil, "")
	assert.Empty(t, conflicts)
}
