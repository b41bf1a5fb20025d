package repository

import (
	"context"

	"github.com/lib/pq"

	"github.com/eduflow/eduflow-backend/internal/school/domain"
	"github.com/eduflow/eduflow-backend/pkg/database"
)

// TeacherRepository builds the scheduling view of teachers: users holding the
// teacher role, their qualified subjects, per-slot availability, and assigned
// weekly load.
type TeacherRepository struct {
	db *database.DB
}

// NewTeacherRepository creates a new teacher repository
func NewTeacherRepository(db *database.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// ListTeachers returns every teacher with subjects, availability and load,
// all fetched within one session.
func (r *TeacherRepository) ListTeachers(ctx context.Context) ([]*domain.Teacher, error) {
	var teachers []*domain.Teacher

	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		type teacherRow struct {
			ID        string `db:"id"`
			FirstName string `db:"first_name"`
			LastName  string `db:"last_name"`
		}

		var rows []teacherRow
		err := s.Select(ctx, &rows, `
			SELECT u.id, u.first_name, u.last_name
			FROM users u
			JOIN user_roles ur ON ur.user_id = u.id AND ur.tenant_id = u.tenant_id
			WHERE ur.role = 'teacher' AND u.active = true AND u.deleted_at IS NULL
			ORDER BY u.last_name, u.first_name
		`)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		byID := make(map[string]*domain.Teacher, len(rows))
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			teacher := &domain.Teacher{
				ID:           row.ID,
				FirstName:    row.FirstName,
				LastName:     row.LastName,
				SubjectIDs:   []string{},
				Availability: make(map[string]bool),
			}
			byID[row.ID] = teacher
			teachers = append(teachers, teacher)
			ids = append(ids, row.ID)
		}

		type subjectRow struct {
			TeacherID string `db:"teacher_id"`
			SubjectID string `db:"subject_id"`
		}
		var subjects []subjectRow
		err = s.Select(ctx, &subjects, `
			SELECT teacher_id, subject_id
			FROM teacher_subjects
			WHERE teacher_id = ANY($1)
			ORDER BY teacher_id, subject_id
		`, pq.Array(ids))
		if err != nil {
			return err
		}
		for _, row := range subjects {
			if teacher, ok := byID[row.TeacherID]; ok {
				teacher.SubjectIDs = append(teacher.SubjectIDs, row.SubjectID)
			}
		}

		type availabilityRow struct {
			TeacherID  string `db:"teacher_id"`
			TimeSlotID string `db:"time_slot_id"`
			Available  bool   `db:"available"`
		}
		var availability []availabilityRow
		err = s.Select(ctx, &availability, `
			SELECT teacher_id, time_slot_id, available
			FROM teacher_availability
			WHERE teacher_id = ANY($1)
		`, pq.Array(ids))
		if err != nil {
			return err
		}
		for _, row := range availability {
			if teacher, ok := byID[row.TeacherID]; ok {
				teacher.Availability[row.TimeSlotID] = row.Available
			}
		}

		type loadRow struct {
			TeacherID string `db:"teacher_id"`
			Periods   int    `db:"periods"`
		}
		var loads []loadRow
		err = s.Select(ctx, &loads, `
			SELECT teacher_id, COALESCE(SUM(periods_per_week), 0) AS periods
			FROM class_subject_requirements
			WHERE teacher_id = ANY($1) AND deleted_at IS NULL
			GROUP BY teacher_id
		`, pq.Array(ids))
		if err != nil {
			return err
		}
		for _, row := range loads {
			if teacher, ok := byID[row.TeacherID]; ok {
				teacher.TotalPeriods = row.Periods
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return teachers, nil
}

// SetSubjects replaces a teacher's qualified subject set.
func (r *TeacherRepository) SetSubjects(ctx context.Context, teacherID string, subjectIDs []string) error {
	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		if _, err := s.Exec(ctx,
			`DELETE FROM teacher_subjects WHERE teacher_id = $1`, teacherID); err != nil {
			return err
		}
		for _, subjectID := range subjectIDs {
			if _, err := s.Exec(ctx,
				`INSERT INTO teacher_subjects (teacher_id, subject_id) VALUES ($1, $2)`,
				teacherID, subjectID); err != nil {
				return database.MapPQError(err)
			}
		}
		return nil
	})
}

// SetAvailability records whether a teacher can teach at a slot.
func (r *TeacherRepository) SetAvailability(ctx context.Context, teacherID, timeSlotID string, available bool) error {
	query := `
		INSERT INTO teacher_availability (teacher_id, time_slot_id, available)
		VALUES ($1, $2, $3)
		ON CONFLICT (teacher_id, time_slot_id) DO UPDATE SET available = EXCLUDED.available
	`

	return r.db.WithRequestSession(ctx, func(s *database.Session) error {
		_, err := s.Exec(ctx, query, teacherID, timeSlotID, available)
		return database.MapPQError(err)
	})
}
