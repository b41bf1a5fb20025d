package repository

import (
	"context"
	"database/sql"

	"github.com/eduflow/eduflow-backend/internal/timetable/domain"
	"github.com/eduflow/eduflow-backend/pkg/database"
	"github.com/eduflow/eduflow-backend/pkg/errors"
)

// DraftRepository reads timetable drafts. Draft writes happen inside the
// generation and finalization transactions owned by EntryRepository.
type DraftRepository struct {
	db *database.DB
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(db *database.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Latest returns the current draft for an academic year: the newest
// non-deleted one. The id tiebreak keeps "latest" deterministic when two
// drafts share a creation timestamp.
func (r *DraftRepository) Latest(ctx context.Context, academicYearID string) (*domain.Draft, error) {
	query := `
		SELECT id, tenant_id, academic_year_id, status, placed_count, failed_count, skipped_count, created_at, updated_at, deleted_at
		FROM timetable_drafts
		WHERE academic_year_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var draft domain.Draft
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Get(ctx, &draft, query, academicYearID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("timetable draft")
		}
		return nil, err
	}
	return &draft, nil
}

// History returns the drafts for an academic year, newest first.
func (r *DraftRepository) History(ctx context.Context, academicYearID string, limit int) ([]*domain.Draft, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, tenant_id, academic_year_id, status, placed_count, failed_count, skipped_count, created_at, updated_at, deleted_at
		FROM timetable_drafts
		WHERE academic_year_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	var drafts []*domain.Draft
	err := r.db.WithRequestSession(ctx, func(s *database.Session) error {
		return s.Select(ctx, &drafts, query, academicYearID, limit)
	})
	if err != nil {
		return nil, err
	}
	return drafts, nil
}
