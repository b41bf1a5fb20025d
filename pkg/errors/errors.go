package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for errors.Is checks across layers.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrRateLimited        = errors.New("rate limited")
	ErrBackpressure       = errors.New("connection acquisition timeout")
)

// AppError represents an application error with a stable code and HTTP status.
// Operational errors carry messages suitable for display; anything else is
// logged and replaced with a generic 500 at the transport layer.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
	// RetryAfter carries the seconds-until-retry hint for rate-limit errors.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Err:        ErrInvalidCredentials,
		Code:       "INVALID_CREDENTIALS",
		Message:    "invalid email or password",
		StatusCode: http.StatusUnauthorized,
	}
}

// Authentication pipeline errors

func AuthMissing() *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "AUTH_MISSING",
		Message:    "authorization header missing or malformed",
		StatusCode: http.StatusUnauthorized,
	}
}

func AuthInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "AUTH_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

func AuthExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "AUTH_EXPIRED",
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

// Tenant pipeline errors

func TenantRequired() *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "TENANT_REQUIRED",
		Message:    "no tenant identifier present on request",
		StatusCode: http.StatusBadRequest,
	}
}

func TenantInactive(slug string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "TENANT_INACTIVE",
		Message:    fmt.Sprintf("tenant %q is suspended or deleted", slug),
		StatusCode: http.StatusForbidden,
	}
}

func NoTenantAccess() *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "NO_TENANT_ACCESS",
		Message:    "user holds no role in this tenant",
		StatusCode: http.StatusForbidden,
	}
}

func PermissionDenied(requirement string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "PERMISSION_DENIED",
		Message:    "permission denied",
		StatusCode: http.StatusForbidden,
		Details:    map[string]string{"required": requirement},
	}
}

// Rate limiter errors

func RateLimited(retryAfter int) *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Code:       "RATE_LIMITED",
		Message:    "too many requests",
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

func Blocked(retryAfter int) *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Code:       "BLOCKED",
		Message:    "temporarily blocked due to repeated limit violations",
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

// Optimistic concurrency and timetable errors

func VersionConflict() *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "VERSION_CONFLICT",
		Message:    "the record was modified by another request",
		StatusCode: http.StatusConflict,
	}
}

func TimetableConflicts(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "TIMETABLE_CONFLICT",
		Message:    "placement conflicts with existing entries",
		StatusCode: http.StatusConflict,
		Details:    details,
	}
}

func NotFinalizable(failedCount int) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "NOT_FINALIZABLE",
		Message:    fmt.Sprintf("timetable has %d unplaced requirements", failedCount),
		StatusCode: http.StatusBadRequest,
	}
}

func FinalizedReadOnly() *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "FINALIZED_READ_ONLY",
		Message:    "timetable is finalized and cannot be modified",
		StatusCode: http.StatusBadRequest,
	}
}

// Pool errors

func Backpressure() *AppError {
	return &AppError{
		Err:        ErrBackpressure,
		Code:       "BACKPRESSURE",
		Message:    "service temporarily overloaded",
		StatusCode: http.StatusServiceUnavailable,
	}
}

// TokenExpired is kept as an alias used by the jwt manager.
func TokenExpired() *AppError {
	return AuthExpired()
}

// TokenInvalid is kept as an alias used by the jwt manager.
func TokenInvalid() *AppError {
	return AuthInvalid()
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
