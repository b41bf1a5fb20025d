package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/eduflow/eduflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL constraint error to an AppError with a
// meaningful message. Errors it does not recognize pass through unchanged;
// nil stays nil.
func MapPQError(err error) error {
	if err == nil {
		return nil
	}

	pqErr, ok := err.(*pq.Error)
	if !ok {
		return err
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return err
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "email_format"):
		return errors.Validation(map[string]string{
			"email": "must be a valid email address",
		})

	case strings.Contains(constraint, "day_of_week_valid"):
		return errors.Validation(map[string]string{
			"day_of_week": "must be between 0 (Sunday) and 6 (Saturday)",
		})

	case strings.Contains(constraint, "tenant_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: active, suspended, deleted",
		})

	case strings.Contains(constraint, "periods_per_week_positive"):
		return errors.Validation(map[string]string{
			"periods_per_week": "must be greater than zero",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "users_email"):
		return "a user with this email already exists in this school"
	case strings.Contains(constraint, "tenants_slug"):
		return "a school with this slug already exists"
	case strings.Contains(constraint, "entries_room_slot"):
		return "the room is already booked for this time slot"
	case strings.Contains(constraint, "entries_teacher_slot"):
		return "the teacher is already booked for this time slot"
	case strings.Contains(constraint, "entries_class_slot"):
		return "the class is already booked for this time slot"
	default:
		return "a record with these values already exists"
	}
}
