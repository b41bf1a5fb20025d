package repository_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-backend/internal/school/domain"
	"github.com/eduflow/eduflow-backend/internal/school/repository"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/testutil"
)

const (
	testTenantID = "11111111-1111-1111-1111-111111111111"
	testUserID   = "22222222-2222-2222-2222-222222222222"
)

func TestRoomRepository_Create(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewRoomRepository(mockDB.DB)
	ctx := testutil.TenantContext(testTenantID, testUserID)

	mockDB.ExpectTenantTx(testTenantID, testUserID)
	mockDB.Mock.ExpectExec("INSERT INTO rooms").
		WithArgs(testutil.AnyUUID{}, testTenantID, "Lab 1", 24, true, 1, testutil.AnyTime{}, testutil.AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	room := &domain.Room{Name: "Lab 1", Capacity: 24, Available: true}
	require.NoError(t, repo.Create(ctx, room))

	assert.NotEmpty(t, room.ID)
	assert.Equal(t, testTenantID, room.TenantID)
	assert.Equal(t, 1, room.Version)

	mockDB.ExpectationsWereMet(t)
}

func TestRoomRepository_GetByID(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewRoomRepository(mockDB.DB)
	ctx := testutil.TenantContext(testTenantID, testUserID)

	now := time.Now()
	rows := testutil.MockRows(
		"id", "tenant_id", "name", "capacity", "available",
		"version", "created_at", "updated_at", "deleted_at").
		AddRow("room-1", testTenantID, "Lab 1", 24, true, 1, now, now, nil)

	mockDB.ExpectTenantTx(testTenantID, testUserID)
	mockDB.Mock.ExpectQuery("FROM rooms").WithArgs("room-1").WillReturnRows(rows)
	mockDB.ExpectCommit()

	room, err := repo.GetByID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "Lab 1", room.Name)
	assert.Equal(t, 24, room.Capacity)

	mockDB.ExpectationsWereMet(t)
}

func TestRoomRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewRoomRepository(mockDB.DB)
	ctx := testutil.TenantContext(testTenantID, testUserID)

	mockDB.ExpectTenantTx(testTenantID, testUserID)
	mockDB.Mock.ExpectQuery("FROM rooms").WithArgs("missing").
		WillReturnRows(testutil.MockRows(
			"id", "tenant_id", "name", "capacity", "available",
			"version", "created_at", "updated_at", "deleted_at"))
	mockDB.ExpectRollback()

	_, err := repo.GetByID(ctx, "missing")
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestRoomRepository_Update_VersionConflict(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewRoomRepository(mockDB.DB)
	ctx := testutil.TenantContext(testTenantID, testUserID)

	mockDB.ExpectTenantTx(testTenantID, testUserID)
	// Zero rows touched: the guard re-checks whether the row still exists.
	mockDB.Mock.ExpectExec("UPDATE rooms").
		WithArgs("Lab 1", 24, true, "room-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.Mock.ExpectQuery("SELECT EXISTS").WithArgs("room-1").
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectRollback()

	room := &domain.Room{ID: "room-1", Name: "Lab 1", Capacity: 24, Available: true, Version: 3}
	err := repo.Update(ctx, room)
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VERSION_CONFLICT", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestRoomRepository_SoftDelete(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewRoomRepository(mockDB.DB)
	ctx := testutil.TenantContext(testTenantID, testUserID)

	mockDB.ExpectTenantTx(testTenantID, testUserID)
	mockDB.Mock.ExpectExec("UPDATE rooms SET deleted_at").
		WithArgs("room-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	require.NoError(t, repo.SoftDelete(ctx, "room-1"))

	mockDB.ExpectationsWereMet(t)
}
