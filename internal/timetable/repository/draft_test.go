package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-backend/internal/timetable/repository"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/testutil"
)

const (
	testTenantID = "11111111-1111-1111-1111-111111111111"
	testUserID   = "22222222-2222-2222-2222-222222222222"
)

func draftColumns() []string {
	return []string{
		"id", "tenant_id", "academic_year_id", "status",
		"placed_count", "failed_count", "skipped_count",
		"created_at", "updated_at", "deleted_at",
	}
}

func TestDraftRepository_Latest_BreaksCreationTies(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewDraftRepository(mockDB.DB)
	ctx := testutil.TenantContext(testTenantID, testUserID)

	now := time.Now()
	rows := testutil.MockRows(draftColumns()...).
		AddRow("draft-9", testTenantID, "year-1", "draft", 30, 0, 0, now, now, nil)

	// Drafts created within the same timestamp are ordered by id, so the
	// pick stays deterministic.
	mockDB.ExpectTenantTx(testTenantID, testUserID)
	mockDB.Mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs("year-1").
		WillReturnRows(rows)
	mockDB.ExpectCommit()

	draft, err := repo.Latest(ctx, "year-1")
	require.NoError(t, err)
	assert.Equal(t, "draft-9", draft.ID)

	mockDB.ExpectationsWereMet(t)
}

func TestDraftRepository_Latest_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewDraftRepository(mockDB.DB)
	ctx := testutil.TenantContext(testTenantID, testUserID)

	mockDB.ExpectTenantTx(testTenantID, testUserID)
	mockDB.Mock.ExpectQuery("FROM timetable_drafts").
		WithArgs("year-1").
		WillReturnRows(testutil.MockRows(draftColumns()...))
	mockDB.ExpectRollback()

	_, err := repo.Latest(ctx, "year-1")
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestDraftRepository_History_CapsLimit(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewDraftRepository(mockDB.DB)
	ctx := testutil.TenantContext(testTenantID, testUserID)

	now := time.Now()
	rows := testutil.MockRows(draftColumns()...).
		AddRow("draft-2", testTenantID, "year-1", "final", 30, 0, 0, now, now, nil).
		AddRow("draft-1", testTenantID, "year-1", "draft", 28, 2, 0, now.Add(-time.Hour), now, nil)

	// An out-of-range limit falls back to the default page size.
	mockDB.ExpectTenantTx(testTenantID, testUserID)
	mockDB.Mock.ExpectQuery("FROM timetable_drafts").
		WithArgs("year-1", 20).
		WillReturnRows(rows)
	mockDB.ExpectCommit()

	drafts, err := repo.History(ctx, "year-1", 500)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "draft-2", drafts[0].ID)

	mockDB.ExpectationsWereMet(t)
}
