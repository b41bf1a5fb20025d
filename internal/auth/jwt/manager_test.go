package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-backend/internal/auth/jwt"
	"github.com/eduflow/eduflow-backend/pkg/config"
	"github.com/eduflow/eduflow-backend/pkg/errors"
)

func testManager(accessExpiry time.Duration) *jwt.Manager {
	return jwt.NewManager(&config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  accessExpiry,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "eduflow-test",
	})
}

func TestManager_GenerateAndValidate(t *testing.T) {
	m := testManager(15 * time.Minute)

	user := &jwt.UserInfo{
		ID:       "user-1",
		Email:    "teacher@north-high.test",
		TenantID: "tenant-1",
	}

	pair, err := m.GenerateTokenPair(user, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "teacher@north-high.test", claims.Email)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.False(t, claims.PlatformOwner)
	assert.Equal(t, "eduflow-test", claims.Issuer)

	refresh, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", refresh.UserID)
	assert.Equal(t, "session-1", refresh.SessionID)
	assert.Equal(t, "tenant-1", refresh.TenantID)
}

func TestManager_PlatformOwnerClaims(t *testing.T) {
	m := testManager(15 * time.Minute)

	pair, err := m.GenerateTokenPair(&jwt.UserInfo{
		ID:            "owner-1",
		Email:         "owner@eduflow.io",
		PlatformOwner: true,
	}, "session-1")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.PlatformOwner)
	assert.Empty(t, claims.TenantID, "platform owners carry no tenant binding")
}

func TestManager_ExpiredToken(t *testing.T) {
	m := testManager(-time.Minute)

	pair, err := m.GenerateTokenPair(&jwt.UserInfo{ID: "user-1", Email: "a@b.test"}, "s")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_EXPIRED", appErr.Code)
}

func TestManager_WrongSecret(t *testing.T) {
	m := testManager(15 * time.Minute)
	other := jwt.NewManager(&config.JWTConfig{
		Secret:        "other-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "eduflow-test",
	})

	pair, err := m.GenerateTokenPair(&jwt.UserInfo{ID: "user-1", Email: "a@b.test"}, "s")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_INVALID", appErr.Code)
}

func TestManager_GarbageToken(t *testing.T) {
	m := testManager(15 * time.Minute)

	_, err := m.ValidateAccessToken("not.a.token")
	assert.Error(t, err)

	_, err = m.ValidateRefreshToken("")
	assert.Error(t, err)
}
