package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	schooldomain "github.com/eduflow/eduflow-backend/internal/school/domain"
	ttdomain "github.com/eduflow/eduflow-backend/internal/timetable/domain"
)

// UserFixture represents test user data
type UserFixture struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Active       bool
	Roles        []string
	CreatedAt    time.Time
}

// TenantFixture represents test tenant data
type TenantFixture struct {
	ID     string
	Name   string
	Slug   string
	Status string
}

// FixtureFactory creates test fixtures with sensible defaults. Fixtures that
// feed the solver are built as domain structs directly, so generator and
// checker tests stay close to production shapes.
type FixtureFactory struct {
	TenantID string
	sequence int
}

// NewFixtureFactory creates a fixture factory bound to one tenant.
func NewFixtureFactory(tenantID string) *FixtureFactory {
	if tenantID == "" {
		tenantID = uuid.New().String()
	}
	return &FixtureFactory{TenantID: tenantID}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Tenant creates a tenant fixture with defaults
func (f *FixtureFactory) Tenant(opts ...func(*TenantFixture)) TenantFixture {
	seq := f.nextSeq()

	tenant := TenantFixture{
		ID:     uuid.New().String(),
		Name:   fmt.Sprintf("School %d", seq),
		Slug:   fmt.Sprintf("school-%d", seq),
		Status: "active",
	}

	for _, opt := range opts {
		opt(&tenant)
	}

	return tenant
}

// WithTenantStatus sets the tenant status
func WithTenantStatus(status string) func(*TenantFixture) {
	return func(t *TenantFixture) {
		t.Status = status
	}
}

// User creates a user fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)

	user := UserFixture{
		ID:           uuid.New().String(),
		TenantID:     f.TenantID,
		Email:        fmt.Sprintf("user%d@test.eduflow.io", seq),
		PasswordHash: string(hash),
		FirstName:    fmt.Sprintf("Test%d", seq),
		LastName:     "User",
		Active:       true,
		Roles:        []string{"teacher"},
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&user)
	}

	return user
}

// WithEmail sets the user email
func WithEmail(email string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Email = email
	}
}

// WithName sets the user's first and last name
func WithName(first, last string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.FirstName = first
		u.LastName = last
	}
}

// WithRoles sets the user's roles
func WithRoles(roles ...string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Roles = roles
	}
}

// WithPassword sets the user password (hashed)
func WithPassword(password string) func(*UserFixture) {
	return func(u *UserFixture) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		u.PasswordHash = string(hash)
	}
}

// Inactive marks the user inactive
func Inactive() func(*UserFixture) {
	return func(u *UserFixture) {
		u.Active = false
	}
}

// AcademicYear creates an academic year fixture with defaults
func (f *FixtureFactory) AcademicYear(opts ...func(*schooldomain.AcademicYear)) *schooldomain.AcademicYear {
	seq := f.nextSeq()
	start := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	year := &schooldomain.AcademicYear{
		ID:        uuid.New().String(),
		TenantID:  f.TenantID,
		Name:      fmt.Sprintf("Year %d", seq),
		StartDate: start,
		EndDate:   start.AddDate(0, 10, 0),
		Active:    true,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(year)
	}

	return year
}

// Class creates a class fixture bound to an academic year
func (f *FixtureFactory) Class(yearID string, opts ...func(*schooldomain.Class)) *schooldomain.Class {
	seq := f.nextSeq()

	class := &schooldomain.Class{
		ID:             uuid.New().String(),
		TenantID:       f.TenantID,
		AcademicYearID: yearID,
		Name:           fmt.Sprintf("Class %dA", seq),
		Grade:          5,
		Version:        1,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(class)
	}

	return class
}

// Subject creates a subject fixture with defaults
func (f *FixtureFactory) Subject(opts ...func(*schooldomain.Subject)) *schooldomain.Subject {
	seq := f.nextSeq()

	subject := &schooldomain.Subject{
		ID:        uuid.New().String(),
		TenantID:  f.TenantID,
		Name:      fmt.Sprintf("Subject %d", seq),
		Code:      fmt.Sprintf("SUB-%03d", seq),
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(subject)
	}

	return subject
}

// Room creates an available room fixture
func (f *FixtureFactory) Room(opts ...func(*schooldomain.Room)) *schooldomain.Room {
	seq := f.nextSeq()

	room := &schooldomain.Room{
		ID:        uuid.New().String(),
		TenantID:  f.TenantID,
		Name:      fmt.Sprintf("Room %d", seq),
		Capacity:  30,
		Available: true,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(room)
	}

	return room
}

// Unavailable marks a room unavailable for scheduling
func Unavailable() func(*schooldomain.Room) {
	return func(r *schooldomain.Room) {
		r.Available = false
	}
}

// TimeSlot creates a time slot fixture for the given day and hour
func (f *FixtureFactory) TimeSlot(day, hour int) *schooldomain.TimeSlot {
	return &schooldomain.TimeSlot{
		ID:        uuid.New().String(),
		TenantID:  f.TenantID,
		DayOfWeek: day,
		StartTime: fmt.Sprintf("%02d:00", hour),
		EndTime:   fmt.Sprintf("%02d:45", hour),
		CreatedAt: time.Now(),
	}
}

// WeekSlots creates periodsPerDay slots for each of days weekdays starting
// Monday at 08:00, in the order the repository lists them.
func (f *FixtureFactory) WeekSlots(days, periodsPerDay int) []*schooldomain.TimeSlot {
	var slots []*schooldomain.TimeSlot
	for day := 1; day <= days; day++ {
		for period := 0; period < periodsPerDay; period++ {
			slots = append(slots, f.TimeSlot(day, 8+period))
		}
	}
	return slots
}

// Teacher creates a scheduling-view teacher qualified for the given subjects
func (f *FixtureFactory) Teacher(subjectIDs []string, opts ...func(*schooldomain.Teacher)) *schooldomain.Teacher {
	seq := f.nextSeq()

	teacher := &schooldomain.Teacher{
		ID:           uuid.New().String(),
		FirstName:    fmt.Sprintf("Teacher%d", seq),
		LastName:     "Test",
		SubjectIDs:   subjectIDs,
		Availability: map[string]bool{},
	}

	for _, opt := range opts {
		opt(teacher)
	}

	return teacher
}

// UnavailableAt blocks the teacher at the given slots
func UnavailableAt(slotIDs ...string) func(*schooldomain.Teacher) {
	return func(t *schooldomain.Teacher) {
		for _, id := range slotIDs {
			t.Availability[id] = false
		}
	}
}

// WithLoad sets the teacher's existing weekly load
func WithLoad(periods int) func(*schooldomain.Teacher) {
	return func(t *schooldomain.Teacher) {
		t.TotalPeriods = periods
	}
}

// Requirement creates a class-subject requirement fixture
func (f *FixtureFactory) Requirement(classID, subjectID string, periods int, opts ...func(*schooldomain.ClassSubjectRequirement)) *schooldomain.ClassSubjectRequirement {
	req := &schooldomain.ClassSubjectRequirement{
		ID:             uuid.New().String(),
		TenantID:       f.TenantID,
		ClassID:        classID,
		SubjectID:      subjectID,
		PeriodsPerWeek: periods,
		Version:        1,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(req)
	}

	return req
}

// PinnedTo pins a requirement to a specific teacher
func PinnedTo(teacherID string) func(*schooldomain.ClassSubjectRequirement) {
	return func(r *schooldomain.ClassSubjectRequirement) {
		r.TeacherID = &teacherID
	}
}

// Entry creates an active timetable entry fixture
func (f *FixtureFactory) Entry(yearID, classID, subjectID, teacherID, roomID, slotID string, opts ...func(*ttdomain.Entry)) *ttdomain.Entry {
	entry := &ttdomain.Entry{
		ID:             uuid.New().String(),
		TenantID:       f.TenantID,
		AcademicYearID: yearID,
		ClassID:        classID,
		SubjectID:      subjectID,
		TeacherID:      teacherID,
		RoomID:         roomID,
		TimeSlotID:     slotID,
		IsActive:       true,
		Version:        1,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(entry)
	}

	return entry
}

// Locked marks an entry locked
func Locked() func(*ttdomain.Entry) {
	return func(e *ttdomain.Entry) {
		e.IsLocked = true
	}
}

// Finalized marks an entry finalized
func Finalized() func(*ttdomain.Entry) {
	return func(e *ttdomain.Entry) {
		e.IsFinalized = true
	}
}
