package handler

import (
	"net/http"
	"time"

	"github.com/eduflow/eduflow-backend/internal/auth/service"
	"github.com/eduflow/eduflow-backend/pkg/config"
	"github.com/eduflow/eduflow-backend/pkg/errors"
	"github.com/eduflow/eduflow-backend/pkg/httputil"
	"github.com/eduflow/eduflow-backend/pkg/logger"
	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

const refreshCookieName = "eduflow_refresh"

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service *service.AuthService
	config  *config.Config
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *service.AuthService, cfg *config.Config, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		config:  cfg,
		logger:  log,
	}
}

// Login handles user login. The tenant, if any, comes from the resolver
// middleware; requests without a resolvable tenant are treated as
// platform-owner logins.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	tenantID, _ := tenant.TenantID(r.Context())

	response, err := h.service.Login(r.Context(), &req, tenantID, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.setRefreshCookie(w, response.RefreshToken)
	httputil.JSON(w, http.StatusOK, response)
}

// Refresh handles token refresh. The refresh token comes from the cookie,
// falling back to the request body for non-browser clients.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.refreshTokenFrom(r)
	if refreshToken == "" {
		httputil.Error(w, errors.Unauthorized("missing refresh token"))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.clearRefreshCookie(w)
		httputil.Error(w, err)
		return
	}

	h.setRefreshCookie(w, tokens.RefreshToken)
	httputil.JSON(w, http.StatusOK, tokens)
}

// Logout revokes the current session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.refreshTokenFrom(r)

	if err := h.service.Logout(r.Context(), refreshToken); err != nil {
		h.logger.Warn().Err(err).Msg("logout error")
	}

	h.clearRefreshCookie(w)
	httputil.NoContent(w)
}

// ForgotPassword starts the password reset flow. Always returns 204 so the
// response does not reveal whether the email exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ForgotPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	tenantID, _ := tenant.TenantID(r.Context())
	if err := h.service.ForgotPassword(r.Context(), &req, tenantID, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn().Err(err).Msg("forgot password error")
	}
	httputil.NoContent(w)
}

// ResetPassword completes the reset flow with a token from the reset email.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), &req); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// Activate sets the initial password on an invited account.
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req service.ActivateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.Activate(r.Context(), &req); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// InviteUser provisions an account pending activation. Requires the
// user:invite permission.
func (h *AuthHandler) InviteUser(w http.ResponseWriter, r *http.Request) {
	var req service.InviteUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, errors.TenantRequired())
		return
	}

	user, err := h.service.InviteUser(r.Context(), &req, tenantID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, user)
}

func (h *AuthHandler) refreshTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httputil.DecodeJSON(r, &req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.config.JWT.RefreshExpiry / time.Second),
		HttpOnly: true,
		Secure:   h.config.Server.Environment == "production",
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Server.Environment == "production",
		SameSite: http.SameSiteStrictMode,
	})
}
