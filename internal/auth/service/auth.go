package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduflow/eduflow-backend/internal/audit/domain"
	auditservice "github.com/eduflow/eduflow-backend/internal/audit/service"
	"github.com/eduflow/eduflow-backend/internal/auth/jwt"
	"github.com/eduflow/eduflow-backend/internal/auth/repository"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/messaging"
)

// AuthService handles authentication logic
type AuthService struct {
	users      *repository.UserRepository
	sessions   *repository.SessionRepository
	jwtManager *jwt.Manager
	audit      *auditservice.AuditService
	publisher  *messaging.Publisher
	// userPublisher emits role and invitation events on the user-events
	// exchange, which the grant-cache invalidation consumer listens on.
	userPublisher *messaging.Publisher
	logger        *logger.Logger
}

// NewAuthService creates a new auth service. The publishers may be nil when
// the message bus is not configured.
func NewAuthService(
	users *repository.UserRepository,
	sessions *repository.SessionRepository,
	jwtManager *jwt.Manager,
	audit *auditservice.AuditService,
	publisher *messaging.Publisher,
	userPublisher *messaging.Publisher,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		jwtManager:    jwtManager,
		audit:         audit,
		publisher:     publisher,
		userPublisher: userPublisher,
		logger:        log,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
	User         *UserInfo `json:"user"`
}

// UserInfo represents user information returned on login
type UserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`
	PlatformOwner bool   `json:"platform_owner,omitempty"`
}

// Login authenticates a user within the resolved tenant. When no tenant is
// resolved the credentials are checked against platform-owner accounts.
// Failed attempts are audited either way.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, tenantID, userAgent, ipAddress string) (*LoginResponse, error) {
	if tenantID == "" {
		return s.loginPlatformOwner(ctx, req, userAgent, ipAddress)
	}

	user, err := s.users.GetByEmail(ctx, tenantID, req.Email)
	if err != nil {
		s.recordLoginFailure(ctx, req.Email, tenantID, ipAddress, userAgent, "unknown_user")
		return nil, errors.InvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordLoginFailure(ctx, req.Email, tenantID, ipAddress, userAgent, "bad_password")
		return nil, errors.InvalidCredentials()
	}

	if !user.Active {
		s.recordLoginFailure(ctx, req.Email, tenantID, ipAddress, userAgent, "user_inactive")
		return nil, errors.InvalidCredentials()
	}

	info := &jwt.UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		TenantID: user.TenantID,
	}

	tokens, err := s.issueSession(ctx, info, &user.TenantID, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to update last login")
	}

	s.recordLoginSuccess(ctx, user.Email, user.TenantID, user.ID, ipAddress, userAgent)

	return &LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		TokenType:    tokens.TokenType,
		User: &UserInfo{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			TenantID:  user.TenantID,
		},
	}, nil
}

func (s *AuthService) loginPlatformOwner(ctx context.Context, req *LoginRequest, userAgent, ipAddress string) (*LoginResponse, error) {
	user, err := s.users.GetPlatformUserByEmail(ctx, req.Email)
	if err != nil {
		s.recordLoginFailure(ctx, req.Email, "", ipAddress, userAgent, "unknown_user")
		return nil, errors.InvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordLoginFailure(ctx, req.Email, "", ipAddress, userAgent, "bad_password")
		return nil, errors.InvalidCredentials()
	}

	if !user.Active {
		s.recordLoginFailure(ctx, req.Email, "", ipAddress, userAgent, "user_inactive")
		return nil, errors.InvalidCredentials()
	}

	info := &jwt.UserInfo{
		ID:            user.ID,
		Email:         user.Email,
		PlatformOwner: true,
	}

	tokens, err := s.issueSession(ctx, info, nil, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchPlatformLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to update last login")
	}

	s.recordLoginSuccess(ctx, user.Email, "", user.ID, ipAddress, userAgent)

	return &LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		TokenType:    tokens.TokenType,
		User: &UserInfo{
			ID:            user.ID,
			Email:         user.Email,
			PlatformOwner: true,
		},
	}, nil
}

func (s *AuthService) issueSession(ctx context.Context, info *jwt.UserInfo, tenantID *string, userAgent, ipAddress string) (*jwt.TokenPair, error) {
	sessionID := uuid.New().String()

	tokens, err := s.jwtManager.GenerateTokenPair(info, sessionID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate tokens")
		return nil, errors.Internal("failed to generate tokens")
	}

	expiresAt := time.Now().Add(s.jwtManager.GetRefreshExpiry())
	if _, err := s.sessions.Create(ctx, sessionID, info.ID, tenantID, tokens.RefreshToken, expiresAt, userAgent, ipAddress); err != nil {
		s.logger.Error().Err(err).Msg("failed to create session")
		return nil, errors.Internal("failed to create session")
	}

	return tokens, nil
}

// Refresh validates a refresh token, rotates it and returns a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, errors.Unauthorized("invalid session")
	}

	info := &jwt.UserInfo{ID: claims.UserID}
	if session.TenantID != nil {
		user, err := s.users.GetByID(ctx, claims.UserID)
		if err != nil {
			return nil, errors.Unauthorized("invalid session")
		}
		if !user.Active {
			return nil, errors.Unauthorized("account deactivated")
		}
		info.Email = user.Email
		info.TenantID = user.TenantID
	} else {
		user, err := s.users.GetPlatformUserByID(ctx, claims.UserID)
		if err != nil {
			return nil, errors.Unauthorized("invalid session")
		}
		if !user.Active {
			return nil, errors.Unauthorized("account deactivated")
		}
		info.Email = user.Email
		info.PlatformOwner = true
	}

	tokens, err := s.jwtManager.GenerateTokenPair(info, session.ID)
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	if err := s.sessions.RotateRefreshToken(ctx, session.ID, tokens.RefreshToken); err != nil {
		s.logger.Error().Err(err).Msg("failed to rotate refresh token")
		return nil, errors.Internal("failed to refresh session")
	}

	s.audit.Record(ctx, domain.ActionTokenRefresh,
		auditservice.WithActor(info.TenantID, info.ID))
	s.publishEvent(ctx, messaging.EventTokenRefresh, &messaging.LoginEvent{
		Email:    info.Email,
		TenantID: info.TenantID,
		Success:  true,
	})

	return tokens, nil
}

// ForgotPasswordRequest starts the password reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the password reset flow.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// ActivateRequest sets the initial password on an invited account.
type ActivateRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// InviteUserRequest provisions a tenant account pending activation.
type InviteUserRequest struct {
	Email     string   `json:"email" validate:"required,email"`
	FirstName string   `json:"first_name" validate:"required,max=100"`
	LastName  string   `json:"last_name" validate:"required,max=100"`
	Roles     []string `json:"roles" validate:"required,min=1,dive,oneof=principal registrar accountant teacher student"`
}

// InviteUser creates an inactive account with the requested roles and emits
// the activation token for out-of-band delivery.
func (s *AuthService) InviteUser(ctx context.Context, req *InviteUserRequest, tenantID string) (*UserInfo, error) {
	token, err := newSecureToken()
	if err != nil {
		return nil, errors.Internal("failed to generate activation token")
	}

	user, err := s.users.CreateInvited(ctx, tenantID, req.Email, req.FirstName, req.LastName, hashSecureToken(token))
	if err != nil {
		return nil, err
	}
	if err := s.users.AssignRoles(ctx, tenantID, user.ID, req.Roles); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.ActionUserInvited,
		auditservice.WithEntity("user", user.ID),
		auditservice.WithMetadata(map[string]string{"email": req.Email}))
	s.publishUserEvent(ctx, messaging.EventUserInvited, &messaging.UserInvitedEvent{
		Email:    req.Email,
		TenantID: tenantID,
		Token:    token,
	})
	s.publishUserEvent(ctx, messaging.EventUserRoleChanged, &messaging.RoleChangedEvent{
		UserID:   user.ID,
		TenantID: tenantID,
		Roles:    req.Roles,
	})

	return &UserInfo{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		TenantID:  tenantID,
	}, nil
}

const resetTokenTTL = time.Hour

// ForgotPassword issues a reset token for the account, delivered out of band
// by the mailer consuming the reset event. Unknown emails succeed silently so
// the endpoint cannot be used to probe for accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, req *ForgotPasswordRequest, tenantID, ipAddress, userAgent string) error {
	if tenantID == "" {
		// Platform-owner resets are handled out of band.
		return nil
	}

	user, err := s.users.GetByEmail(ctx, tenantID, req.Email)
	if err != nil {
		s.audit.Record(ctx, domain.ActionPasswordResetRequested,
			auditservice.WithActor(tenantID, ""),
			auditservice.WithRequestInfo(ipAddress, userAgent),
			auditservice.WithMetadata(map[string]string{"email": req.Email, "reason": "unknown_user"}))
		return nil
	}

	token, err := newSecureToken()
	if err != nil {
		return errors.Internal("failed to generate reset token")
	}
	if err := s.users.SetResetToken(ctx, user.ID, hashSecureToken(token), time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}

	s.audit.Record(ctx, domain.ActionPasswordResetRequested,
		auditservice.WithActor(tenantID, user.ID),
		auditservice.WithRequestInfo(ipAddress, userAgent),
		auditservice.WithMetadata(map[string]string{"email": user.Email}))
	s.publishEvent(ctx, messaging.EventPasswordResetRequested, &messaging.PasswordResetEvent{
		Email:    user.Email,
		TenantID: tenantID,
		Token:    token,
	})
	return nil
}

// ResetPassword consumes a reset token and sets a new password. Every live
// session of the user is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	user, err := s.users.GetByResetToken(ctx, hashSecureToken(req.Token))
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Internal("failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to revoke sessions after password reset")
	}

	s.audit.Record(ctx, domain.ActionPasswordReset,
		auditservice.WithActor(user.TenantID, user.ID))
	s.publishEvent(ctx, messaging.EventPasswordReset, &messaging.PasswordResetEvent{
		Email:    user.Email,
		TenantID: user.TenantID,
	})
	return nil
}

// Activate consumes an activation token, sets the initial password and marks
// the account active.
func (s *AuthService) Activate(ctx context.Context, req *ActivateRequest) error {
	user, err := s.users.GetByActivationToken(ctx, hashSecureToken(req.Token))
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Internal("failed to hash password")
	}
	if err := s.users.Activate(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	s.audit.Record(ctx, domain.ActionAccountActivated,
		auditservice.WithActor(user.TenantID, user.ID))
	s.publishEvent(ctx, messaging.EventAccountActivated, &messaging.PasswordResetEvent{
		Email:    user.Email,
		TenantID: user.TenantID,
	})
	return nil
}

// Logout revokes the session holding the refresh token. Idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.RevokeByRefreshToken(ctx, refreshToken); err != nil {
		s.logger.Warn().Err(err).Msg("failed to revoke session")
		return nil
	}
	s.audit.Record(ctx, domain.ActionLogout)
	return nil
}

func (s *AuthService) recordLoginSuccess(ctx context.Context, email, tenantID, userID, ipAddress, userAgent string) {
	s.audit.Record(ctx, domain.ActionLoginSuccess,
		auditservice.WithActor(tenantID, userID),
		auditservice.WithRequestInfo(ipAddress, userAgent),
		auditservice.WithMetadata(map[string]string{"email": email}))

	s.publishEvent(ctx, messaging.EventLoginSuccess, &messaging.LoginEvent{
		Email:     email,
		TenantID:  tenantID,
		IPAddress: ipAddress,
		Success:   true,
	})
}

func (s *AuthService) recordLoginFailure(ctx context.Context, email, tenantID, ipAddress, userAgent, reason string) {
	s.audit.Record(ctx, domain.ActionLoginFailure,
		auditservice.WithActor(tenantID, ""),
		auditservice.WithRequestInfo(ipAddress, userAgent),
		auditservice.WithMetadata(map[string]string{"email": email, "reason": reason}))

	s.publishEvent(ctx, messaging.EventLoginFailure, &messaging.LoginEvent{
		Email:     email,
		TenantID:  tenantID,
		IPAddress: ipAddress,
		Success:   false,
		Reason:    reason,
	})
}

// newSecureToken returns a 256-bit random token in hex. Only its hash is
// persisted.
func newSecureToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashSecureToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) publishEvent(ctx context.Context, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// publishUserEvent emits on the user-events exchange so that the grant-cache
// invalidation consumer, subscribed there, sees role changes.
func (s *AuthService) publishUserEvent(ctx context.Context, eventType string, data interface{}) {
	if s.userPublisher == nil {
		return
	}
	if err := s.userPublisher.Publish(ctx, eventType, data); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}
