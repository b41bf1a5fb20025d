package domain

import "time"

// Draft statuses. finalized is terminal.
const (
	DraftStatusDraft     = "draft"
	DraftStatusFinalized = "finalized"
)

// Failure reasons for unplaced requirements.
const (
	ReasonMaxRetriesExceeded = "max_retries_exceeded"
	ReasonNoValidSlotFound   = "no_valid_slot_found"
)

// Conflict kinds.
const (
	ConflictRoomDoubleBooked    = "room_double_booked"
	ConflictTeacherDoubleBooked = "teacher_double_booked"
	ConflictClassDoubleBooked   = "class_double_booked"
	ConflictTeacherUnavailable  = "teacher_unavailable"
)

// Entry is a materialized placement of one class period.
type Entry struct {
	ID             string     `db:"id" json:"id"`
	TenantID       string     `db:"tenant_id" json:"tenant_id"`
	AcademicYearID string     `db:"academic_year_id" json:"academic_year_id"`
	ClassID        string     `db:"class_id" json:"class_id"`
	SubjectID      string     `db:"subject_id" json:"subject_id"`
	TeacherID      string     `db:"teacher_id" json:"teacher_id"`
	RoomID         string     `db:"room_id" json:"room_id"`
	TimeSlotID     string     `db:"time_slot_id" json:"time_slot_id"`
	IsLocked       bool       `db:"is_locked" json:"is_locked"`
	IsFinalized    bool       `db:"is_finalized" json:"is_finalized"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	LockedBy       *string    `db:"locked_by" json:"locked_by,omitempty"`
	LockedAt       *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	Version        int        `db:"version" json:"version"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}

// EntryView is an entry with denormalized labels for display.
type EntryView struct {
	Entry
	ClassName   string `db:"class_name" json:"class_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	RoomName    string `db:"room_name" json:"room_name"`
	DayOfWeek   int    `db:"day_of_week" json:"day_of_week"`
	StartTime   string `db:"start_time" json:"start_time"`
	EndTime     string `db:"end_time" json:"end_time"`
}

// Draft records one generation run for an academic year.
type Draft struct {
	ID             string     `db:"id" json:"id"`
	TenantID       string     `db:"tenant_id" json:"tenant_id"`
	AcademicYearID string     `db:"academic_year_id" json:"academic_year_id"`
	Status         string     `db:"status" json:"status"`
	PlacedCount    int        `db:"placed_count" json:"placed_count"`
	FailedCount    int        `db:"failed_count" json:"failed_count"`
	SkippedCount   int        `db:"skipped_count" json:"skipped_count"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}

// Candidate is a placement under consideration by the constraint checker.
type Candidate struct {
	AcademicYearID string `json:"academic_year_id"`
	ClassID        string `json:"class_id"`
	TeacherID      string `json:"teacher_id"`
	RoomID         string `json:"room_id"`
	TimeSlotID     string `json:"time_slot_id"`
}

// Conflict is one violated placement constraint.
type Conflict struct {
	Kind       string `json:"kind"`
	EntryID    string `json:"entry_id,omitempty"`
	TimeSlotID string `json:"time_slot_id"`
	Message    string `json:"message"`
}

// Requirement is one expanded period of a class-subject pairing, tagged with
// its index within the pairing's weekly total.
type Requirement struct {
	ClassID      string  `json:"class_id"`
	SubjectID    string  `json:"subject_id"`
	TeacherID    *string `json:"teacher_id,omitempty"`
	PeriodIndex  int     `json:"period_index"`
	TotalPeriods int     `json:"total_periods"`
}

// FailedRequirement is a requirement the generator could not place.
type FailedRequirement struct {
	Requirement
	Reason string `json:"reason"`
}

// SkippedRequirement is a requirement already covered by a locked entry.
type SkippedRequirement struct {
	Requirement
	EntryID string `json:"entry_id"`
}

// GenerateResult is the outcome of one generation run.
type GenerateResult struct {
	Draft   *Draft               `json:"draft"`
	Placed  []*Entry             `json:"placed"`
	Failed  []FailedRequirement  `json:"failed"`
	Skipped []SkippedRequirement `json:"skipped"`
}
