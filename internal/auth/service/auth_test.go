package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auditRepository "github.com/eduflow/eduflow-backend/internal/audit/repository"
	auditService "github.com/eduflow/eduflow-backend/internal/audit/service"
	"github.com/eduflow/eduflow-backend/internal/auth/jwt"
	"github.com/eduflow/eduflow-backend/internal/auth/repository"
	"github.com/eduflow/eduflow-backend/internal/auth/service"
	"github.com/eduflow/eduflow-backend/pkg/config"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/testutil"
)

const (
	tenantID = "11111111-1111-1111-1111-111111111111"
	userID   = "22222222-2222-2222-2222-222222222222"
)

func newTestService(m *testutil.MockDB) *service.AuthService {
	log := logger.NewNop()
	manager := jwt.NewManager(&config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        "eduflow-test",
	})
	audit := auditService.NewAuditService(auditRepository.NewAuditRepository(m.DB), nil, log)
	return service.NewAuthService(
		repository.NewUserRepository(m.DB),
		repository.NewSessionRepository(m.DB),
		manager, audit, nil, nil, log)
}

func userColumns() []string {
	return []string{
		"id", "tenant_id", "email", "password_hash", "first_name", "last_name",
		"active", "last_login_at", "created_at", "updated_at",
	}
}

func userRow(passwordHash string, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns()).
		AddRow(userID, tenantID, "alice@north-high.test", passwordHash, "Alice", "Reyes", active, nil, now, now)
}

func TestAuthService_Login(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestService(mockDB)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectQuery("FROM users").WithArgs(tenantID, "alice@north-high.test").
		WillReturnRows(userRow(string(hash), true))
	mockDB.ExpectCommit()

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectExec("UPDATE users SET last_login_at").WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	resp, err := svc.Login(context.Background(), &service.LoginRequest{
		Email:    "alice@north-high.test",
		Password: "correct horse",
	}, tenantID, "test-agent", "1.2.3.4")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, userID, resp.User.ID)
	assert.Equal(t, tenantID, resp.User.TenantID)

	mockDB.ExpectationsWereMet(t)
}

func TestAuthService_Login_BadPassword(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestService(mockDB)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectQuery("FROM users").WithArgs(tenantID, "alice@north-high.test").
		WillReturnRows(userRow(string(hash), true))
	mockDB.ExpectCommit()

	_, err = svc.Login(context.Background(), &service.LoginRequest{
		Email:    "alice@north-high.test",
		Password: "wrong",
	}, tenantID, "test-agent", "1.2.3.4")
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestService(mockDB)

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectQuery("FROM users").WithArgs(tenantID, "ghost@north-high.test").
		WillReturnRows(sqlmock.NewRows(userColumns()))
	mockDB.ExpectRollback()

	_, err := svc.Login(context.Background(), &service.LoginRequest{
		Email:    "ghost@north-high.test",
		Password: "whatever",
	}, tenantID, "test-agent", "1.2.3.4")
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestAuthService_ForgotPassword(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestService(mockDB)

	hash, _ := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectQuery("FROM users").WithArgs(tenantID, "alice@north-high.test").
		WillReturnRows(userRow(string(hash), true))
	mockDB.ExpectCommit()

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectExec("UPDATE users SET reset_token_hash").
		WithArgs(sqlmock.AnyArg(), testutil.AnyTime{}, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := svc.ForgotPassword(context.Background(), &service.ForgotPasswordRequest{
		Email: "alice@north-high.test",
	}, tenantID, "1.2.3.4", "test-agent")
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestAuthService_ForgotPassword_UnknownEmailStaysSilent(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestService(mockDB)

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectQuery("FROM users").WithArgs(tenantID, "ghost@north-high.test").
		WillReturnRows(sqlmock.NewRows(userColumns()))
	mockDB.ExpectRollback()

	// No token is written, and no error reveals the account is missing.
	err := svc.ForgotPassword(context.Background(), &service.ForgotPasswordRequest{
		Email: "ghost@north-high.test",
	}, tenantID, "1.2.3.4", "test-agent")
	require.NoError(t, err)
}

func TestAuthService_ResetPassword(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestService(mockDB)

	hash, _ := bcrypt.GenerateFromPassword([]byte("old"), bcrypt.MinCost)

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectQuery("FROM users").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(userRow(string(hash), true))
	mockDB.ExpectCommit()

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs(sqlmock.AnyArg(), userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectExec("UPDATE sessions SET revoked_at").WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mockDB.ExpectCommit()

	err := svc.ResetPassword(context.Background(), &service.ResetPasswordRequest{
		Token:    "0011223344556677889900112233445566778899001122334455667788990011",
		Password: "new password",
	})
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestAuthService_ResetPassword_InvalidToken(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestService(mockDB)

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectQuery("FROM users").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userColumns()))
	mockDB.ExpectRollback()

	err := svc.ResetPassword(context.Background(), &service.ResetPasswordRequest{
		Token:    "bogus",
		Password: "new password",
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestAuthService_InviteUser(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	svc := newTestService(mockDB)

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectExec("INSERT INTO users").
		WithArgs(testutil.AnyUUID{}, tenantID, "bob@north-high.test", "Bob", "Lund", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	mockDB.ExpectUnscopedTx()
	mockDB.Mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(testutil.AnyUUID{}, tenantID, "teacher").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	user, err := svc.InviteUser(context.Background(), &service.InviteUserRequest{
		Email:     "bob@north-high.test",
		FirstName: "Bob",
		LastName:  "Lund",
		Roles:     []string{"teacher"},
	}, tenantID)
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "bob@north-high.test", user.Email)
	assert.Equal(t, tenantID, user.TenantID)

	mockDB.ExpectationsWereMet(t)
}
