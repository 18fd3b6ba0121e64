// Package domain defines the core domain models for CredGate.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes follow the CG-<AREA>-<NNNN> format; the numeric suffix mirrors the
// HTTP status the error maps to at the API boundary.
type DomainError struct {
	Code    string // Error code (e.g., "CG-SESS-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true // Only check if it's a DomainError
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrInvalidCredentials indicates the username or password is wrong.
	// Unknown username and wrong password deliberately share this error
	// so responses cannot be used to probe for valid accounts.
	ErrInvalidCredentials = NewDomainError("CG-AUTH-4010", "invalid username or password")

	// ErrTokenNotProvided indicates no session token was sent with the request.
	ErrTokenNotProvided = NewDomainError("CG-AUTH-4011", "session token not provided")

	// ErrUserDisabled indicates the account is administratively disabled.
	ErrUserDisabled = NewDomainError("CG-AUTH-4012", "account disabled")

	// ErrUserLocked indicates the account is locked after repeated failures.
	ErrUserLocked = NewDomainError("CG-AUTH-4013", "account temporarily locked")

	// ErrPermissionDenied indicates insufficient permissions.
	ErrPermissionDenied = NewDomainError("CG-AUTH-4030", "permission denied")

	// ErrIPNotAllowed indicates the IP is not in the allowlist.
	ErrIPNotAllowed = NewDomainError("CG-AUTH-4031", "ip not in allowlist")

	// ErrLoginRateLimited indicates too many login attempts for an identity.
	ErrLoginRateLimited = NewDomainError("CG-AUTH-4290", "too many login attempts")

	// ErrCredentialValidation indicates login input validation failed.
	ErrCredentialValidation = NewDomainError("CG-AUTH-4001", "credential validation failed")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates the requested session was not found.
	ErrSessionNotFound = NewDomainError("CG-SESS-4040", "session not found")

	// ErrSessionExpired indicates the session has expired.
	ErrSessionExpired = NewDomainError("CG-SESS-4041", "session expired")

	// ErrSessionConflict indicates the session ID already exists.
	ErrSessionConflict = NewDomainError("CG-SESS-4090", "session id conflict")

	// ErrSessionVersionConflict indicates an optimistic lock conflict.
	ErrSessionVersionConflict = NewDomainError("CG-SESS-4091", "version conflict, please retry")

	// ErrSessionValidation indicates session data validation failed.
	ErrSessionValidation = NewDomainError("CG-SESS-4001", "session validation failed")

	// ErrSessionQuotaExceeded indicates user session quota exceeded.
	ErrSessionQuotaExceeded = NewDomainError("CG-SESS-4002", "user session quota exceeded")
)

// ============================================================================
// Token Errors (TOKN)
// ============================================================================

var (
	// ErrTokenMalformed indicates the token format is invalid.
	ErrTokenMalformed = NewDomainError("CG-TOKN-4000", "malformed token")

	// ErrTokenInvalid indicates the token is invalid (not found).
	ErrTokenInvalid = NewDomainError("CG-TOKN-4010", "invalid token")

	// ErrTokenExpired indicates the token has expired.
	ErrTokenExpired = NewDomainError("CG-TOKN-4011", "token expired")

	// ErrTokenRevoked indicates the token has been revoked.
	ErrTokenRevoked = NewDomainError("CG-TOKN-4012", "token revoked")

	// ErrTokenHashConflict indicates a token hash collision.
	ErrTokenHashConflict = NewDomainError("CG-TOKN-4090", "token hash conflict")
)

// ============================================================================
// User Directory Errors (USER)
// ============================================================================

var (
	// ErrUserNotFound indicates the requested user was not found.
	ErrUserNotFound = NewDomainError("CG-USER-4040", "user not found")

	// ErrUserConflict indicates the username is already taken.
	ErrUserConflict = NewDomainError("CG-USER-4090", "username already exists")

	// ErrUserValidation indicates user data validation failed.
	ErrUserValidation = NewDomainError("CG-USER-4001", "user validation failed")

	// ErrPasswordPolicy indicates the password does not meet policy.
	ErrPasswordPolicy = NewDomainError("CG-USER-4002", "password does not meet policy")

	// ErrDirectoryUnavailable indicates the user directory backend failed.
	ErrDirectoryUnavailable = NewDomainError("CG-USER-5030", "user directory unavailable")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("CG-SYS-5000", "internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("CG-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("CG-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("CG-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("CG-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("CG-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("CG-ARG-1002", "missing required argument")

	// ErrArgumentConflict indicates conflicting arguments.
	ErrArgumentConflict = NewDomainError("CG-ARG-1003", "argument conflict")
)

// ============================================================================
// Admin Errors (ADMIN)
// ============================================================================

var (
	// ErrAdminPermissionDenied indicates admin role is required.
	ErrAdminPermissionDenied = NewDomainError("CG-ADMIN-4030", "admin role required")

	// ErrAdminIPNotAllowed indicates the admin IP is not in allowlist.
	ErrAdminIPNotAllowed = NewDomainError("CG-ADMIN-4031", "admin ip not allowed")

	// ErrAdminResourceNotFound indicates the admin resource was not found.
	ErrAdminResourceNotFound = NewDomainError("CG-ADMIN-4041", "admin resource not found")

	// ErrAdminOperationConflict indicates a conflicting admin operation.
	ErrAdminOperationConflict = NewDomainError("CG-ADMIN-4091", "admin operation conflict")
)
