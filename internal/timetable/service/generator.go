package service

import (
	"sort"

	schooldomain "github.com/eduflow/eduflow-backend/internal/school/domain"
	"github.com/eduflow/eduflow-backend/internal/timetable/checker"
	"github.com/eduflow/eduflow-backend/internal/timetable/domain"
)

// Solver bounds. Both are config-overridable; these are the fallbacks.
const (
	DefaultMaxRetriesPerEntry = 10
	DefaultMaxGlobalRetries   = 500
)

// SolverInputs is the in-memory state one generation run works on. Existing
// holds the entries that survive the clearing step (locked or finalized);
// the solver treats them as immovable.
type SolverInputs struct {
	AcademicYearID string
	Slots          []*schooldomain.TimeSlot
	Rooms          []*schooldomain.Room
	Teachers       []*schooldomain.Teacher
	Requirements   []*schooldomain.ClassSubjectRequirement
	Existing       []*domain.Entry
}

// SolveOutcome is the solver's result, before persistence.
type SolveOutcome struct {
	Placed  []*domain.Entry
	Failed  []domain.FailedRequirement
	Skipped []domain.SkippedRequirement
}

// Solver is a greedy difficulty-first placer. It never backtracks: a
// requirement that cannot be placed within the retry budget is recorded as
// failed and skipped. Difficulty-first ordering makes the scarce placements
// claim slots before the flexible ones.
type Solver struct {
	maxRetriesPerEntry int
	maxGlobalRetries   int
}

// NewSolver creates a solver with the given retry bounds. Non-positive
// bounds fall back to the defaults.
func NewSolver(maxRetriesPerEntry, maxGlobalRetries int) *Solver {
	if maxRetriesPerEntry <= 0 {
		maxRetriesPerEntry = DefaultMaxRetriesPerEntry
	}
	if maxGlobalRetries <= 0 {
		maxGlobalRetries = DefaultMaxGlobalRetries
	}
	return &Solver{
		maxRetriesPerEntry: maxRetriesPerEntry,
		maxGlobalRetries:   maxGlobalRetries,
	}
}

type solveState struct {
	inputs *SolverInputs

	teachersByID map[string]*schooldomain.Teacher

	// Occupancy indexes over existing plus placed entries.
	classUsed   map[string]map[string]bool // classID -> slotID
	teacherUsed map[string]map[string]bool // teacherID -> slotID
	roomUsed    map[string]map[string]bool // roomID -> slotID
	roomLoad    map[string]int             // roomID -> total placements
	teacherLoad map[string]int             // teacherID -> in-run placements

	working []*domain.Entry

	globalRetries int
}

// Run executes one generation over the inputs.
func (s *Solver) Run(inputs *SolverInputs) *SolveOutcome {
	state := newSolveState(inputs)
	outcome := &SolveOutcome{}

	requirements, skipped := expandRequirements(inputs)
	outcome.Skipped = skipped

	orderByDifficulty(requirements, inputs.Teachers)

	aborted := false
	for _, req := range requirements {
		if aborted {
			outcome.Failed = append(outcome.Failed, domain.FailedRequirement{
				Requirement: req,
				Reason:      domain.ReasonMaxRetriesExceeded,
			})
			continue
		}

		entry, reason := s.place(state, req)
		if entry != nil {
			outcome.Placed = append(outcome.Placed, entry)
			continue
		}

		outcome.Failed = append(outcome.Failed, domain.FailedRequirement{
			Requirement: req,
			Reason:      reason,
		})

		if state.globalRetries >= s.maxGlobalRetries {
			aborted = true
		}
	}

	return outcome
}

// place tries candidate slots in ambient order until one fits or the retry
// budget runs out.
func (s *Solver) place(state *solveState, req domain.Requirement) (*domain.Entry, string) {
	attempts := 0

	for _, slot := range state.inputs.Slots {
		if attempts >= s.maxRetriesPerEntry {
			return nil, domain.ReasonMaxRetriesExceeded
		}
		if state.globalRetries >= s.maxGlobalRetries {
			return nil, domain.ReasonMaxRetriesExceeded
		}

		if state.classUsed[req.ClassID][slot.ID] {
			continue
		}

		attempts++

		teacherID, ok := state.pickTeacher(req, slot.ID)
		if !ok {
			state.globalRetries++
			continue
		}

		roomID, ok := state.pickRoom(slot.ID)
		if !ok {
			state.globalRetries++
			continue
		}

		candidate := domain.Candidate{
			AcademicYearID: state.inputs.AcademicYearID,
			ClassID:        req.ClassID,
			TeacherID:      teacherID,
			RoomID:         roomID,
			TimeSlotID:     slot.ID,
		}
		if conflicts := checker.Check(candidate, state.working, state.available, ""); len(conflicts) > 0 {
			state.globalRetries++
			continue
		}

		entry := &domain.Entry{
			AcademicYearID: state.inputs.AcademicYearID,
			ClassID:        req.ClassID,
			SubjectID:      req.SubjectID,
			TeacherID:      teacherID,
			RoomID:         roomID,
			TimeSlotID:     slot.ID,
			IsActive:       true,
		}
		state.commit(entry)
		return entry, ""
	}

	if attempts >= s.maxRetriesPerEntry {
		return nil, domain.ReasonMaxRetriesExceeded
	}
	return nil, domain.ReasonNoValidSlotFound
}

func newSolveState(inputs *SolverInputs) *solveState {
	state := &solveState{
		inputs:       inputs,
		teachersByID: make(map[string]*schooldomain.Teacher, len(inputs.Teachers)),
		classUsed:    make(map[string]map[string]bool),
		teacherUsed:  make(map[string]map[string]bool),
		roomUsed:     make(map[string]map[string]bool),
		roomLoad:     make(map[string]int),
		teacherLoad:  make(map[string]int),
	}
	for _, teacher := range inputs.Teachers {
		state.teachersByID[teacher.ID] = teacher
	}
	for _, entry := range inputs.Existing {
		state.index(entry)
		state.working = append(state.working, entry)
	}
	return state
}

func (st *solveState) commit(entry *domain.Entry) {
	st.index(entry)
	st.teacherLoad[entry.TeacherID]++
	st.working = append(st.working, entry)
}

func (st *solveState) index(entry *domain.Entry) {
	mark(st.classUsed, entry.ClassID, entry.TimeSlotID)
	mark(st.teacherUsed, entry.TeacherID, entry.TimeSlotID)
	mark(st.roomUsed, entry.RoomID, entry.TimeSlotID)
	st.roomLoad[entry.RoomID]++
}

func mark(index map[string]map[string]bool, key, slotID string) {
	if index[key] == nil {
		index[key] = make(map[string]bool)
	}
	index[key][slotID] = true
}

// available adapts the teacher set to the checker's availability contract.
func (st *solveState) available(teacherID, slotID string) bool {
	teacher, ok := st.teachersByID[teacherID]
	if !ok {
		return true
	}
	return teacher.AvailableAt(slotID)
}

// pickTeacher selects the teacher for a requirement at a slot. Pinned
// requirements use their teacher; otherwise the least-loaded qualified
// teacher that is free and available wins, ties broken on ID.
func (st *solveState) pickTeacher(req domain.Requirement, slotID string) (string, bool) {
	if req.TeacherID != nil {
		id := *req.TeacherID
		if st.teacherUsed[id][slotID] || !st.available(id, slotID) {
			return "", false
		}
		return id, true
	}

	bestID := ""
	bestLoad := 0
	for _, teacher := range st.inputs.Teachers {
		if !teacher.Qualified(req.SubjectID) {
			continue
		}
		if st.teacherUsed[teacher.ID][slotID] || !teacher.AvailableAt(slotID) {
			continue
		}
		load := teacher.TotalPeriods + st.teacherLoad[teacher.ID]
		if bestID == "" || load < bestLoad || (load == bestLoad && teacher.ID < bestID) {
			bestID = teacher.ID
			bestLoad = load
		}
	}
	return bestID, bestID != ""
}

// pickRoom selects the least-used free room at a slot, ties broken on ID.
func (st *solveState) pickRoom(slotID string) (string, bool) {
	bestID := ""
	bestLoad := 0
	for _, room := range st.inputs.Rooms {
		if !room.Available {
			continue
		}
		if st.roomUsed[room.ID][slotID] {
			continue
		}
		load := st.roomLoad[room.ID]
		if bestID == "" || load < bestLoad || (load == bestLoad && room.ID < bestID) {
			bestID = room.ID
			bestLoad = load
		}
	}
	return bestID, bestID != ""
}

// expandRequirements turns each periods-per-week row into individual tagged
// requirements, reporting as skipped the periods already covered by entries
// that survived clearing.
func expandRequirements(inputs *SolverInputs) ([]domain.Requirement, []domain.SkippedRequirement) {
	surviving := make(map[[2]string][]*domain.Entry)
	for _, entry := range inputs.Existing {
		key := [2]string{entry.ClassID, entry.SubjectID}
		surviving[key] = append(surviving[key], entry)
	}

	var requirements []domain.Requirement
	var skipped []domain.SkippedRequirement

	for _, row := range inputs.Requirements {
		key := [2]string{row.ClassID, row.SubjectID}
		covered := surviving[key]

		for period := 1; period <= row.PeriodsPerWeek; period++ {
			req := domain.Requirement{
				ClassID:      row.ClassID,
				SubjectID:    row.SubjectID,
				TeacherID:    row.TeacherID,
				PeriodIndex:  period,
				TotalPeriods: row.PeriodsPerWeek,
			}

			if len(covered) > 0 {
				skipped = append(skipped, domain.SkippedRequirement{
					Requirement: req,
					EntryID:     covered[0].ID,
				})
				covered = covered[1:]
				surviving[key] = covered
				continue
			}

			requirements = append(requirements, req)
		}
	}

	return requirements, skipped
}

// orderByDifficulty sorts requirements so the hardest to place go first:
// fewer qualified teachers, then more weekly periods. The sort is stable, so
// ties keep input order.
func orderByDifficulty(requirements []domain.Requirement, teachers []*schooldomain.Teacher) {
	qualifiedCount := func(subjectID string) int {
		count := 0
		for _, teacher := range teachers {
			if teacher.Qualified(subjectID) {
				count++
			}
		}
		return count
	}

	counts := make(map[string]int)
	for _, req := range requirements {
		if _, ok := counts[req.SubjectID]; !ok {
			counts[req.SubjectID] = qualifiedCount(req.SubjectID)
		}
	}

	sort.SliceStable(requirements, func(i, j int) bool {
		qi, qj := counts[requirements[i].SubjectID], counts[requirements[j].SubjectID]
		if qi != qj {
			return qi < qj
		}
		return requirements[i].TotalPeriods > requirements[j].TotalPeriods
	})
}
