package domain

import "time"

// AcademicYear is the scheduling scope for a timetable.
type AcademicYear struct {
	ID        string     `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	Name      string     `db:"name" json:"name"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   time.Time  `db:"end_date" json:"end_date"`
	Active    bool       `db:"active" json:"active"`
	Version   int        `db:"version" json:"version"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Class is a group of students taught together.
type Class struct {
	ID             string     `db:"id" json:"id"`
	TenantID       string     `db:"tenant_id" json:"tenant_id"`
	AcademicYearID string     `db:"academic_year_id" json:"academic_year_id"`
	Name           string     `db:"name" json:"name"`
	Grade          int        `db:"grade" json:"grade"`
	Version        int        `db:"version" json:"version"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}

// Subject is a taught discipline.
type Subject struct {
	ID        string     `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	Name      string     `db:"name" json:"name"`
	Code      string     `db:"code" json:"code"`
	Version   int        `db:"version" json:"version"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Room is a physical room placements can use.
type Room struct {
	ID        string     `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	Name      string     `db:"name" json:"name"`
	Capacity  int        `db:"capacity" json:"capacity"`
	Available bool       `db:"available" json:"available"`
	Version   int        `db:"version" json:"version"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// TimeSlot is a fixed weekly time window. Slots referenced by timetable
// entries are immutable.
type TimeSlot struct {
	ID        string     `db:"id" json:"id"`
	TenantID  string     `db:"tenant_id" json:"tenant_id"`
	DayOfWeek int        `db:"day_of_week" json:"day_of_week"`
	StartTime string     `db:"start_time" json:"start_time"`
	EndTime   string     `db:"end_time" json:"end_time"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Teacher is the scheduling view of a user holding the teacher role:
// qualified subjects, per-slot availability, and current load.
type Teacher struct {
	ID           string   `json:"id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	SubjectIDs   []string `json:"subject_ids"`
	TotalPeriods int      `json:"total_periods"`

	// Availability maps time slot ID to availability. Slots absent from
	// the map are treated as available.
	Availability map[string]bool `json:"availability"`
}

// AvailableAt reports whether the teacher can be scheduled at the slot.
// Only an explicit false blocks placement.
func (t *Teacher) AvailableAt(slotID string) bool {
	available, ok := t.Availability[slotID]
	return !ok || available
}

// Qualified reports whether the teacher teaches the subject.
func (t *Teacher) Qualified(subjectID string) bool {
	for _, id := range t.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// ClassSubjectRequirement demands PeriodsPerWeek weekly periods of a subject
// for a class, optionally pinned to a teacher.
type ClassSubjectRequirement struct {
	ID             string     `db:"id" json:"id"`
	TenantID       string     `db:"tenant_id" json:"tenant_id"`
	ClassID        string     `db:"class_id" json:"class_id"`
	SubjectID      string     `db:"subject_id" json:"subject_id"`
	TeacherID      *string    `db:"teacher_id" json:"teacher_id,omitempty"`
	PeriodsPerWeek int        `db:"periods_per_week" json:"periods_per_week"`
	Version        int        `db:"version" json:"version"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}
