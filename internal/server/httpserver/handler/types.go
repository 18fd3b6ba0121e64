// Package handler provides HTTP request handlers for CredGate.
package handler

import "time"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

// LoginResponse is the response body for POST /api/v1/auth/login.
type LoginResponse struct {
	Token     string        `json:"token"`
	TokenType string        `json:"token_type"`
	SessionID string        `json:"session_id"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user,omitempty"`
}

// UserResponse represents a directory account in API responses.
// The password hash never leaves the server.
type UserResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	Locked      bool      `json:"locked,omitempty"`
	LastLogin   time.Time `json:"last_login,omitzero"`
	LastLoginIP string    `json:"last_login_ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

// WhoAmIResponse is the response body for GET /api/v1/auth/whoami.
type WhoAmIResponse struct {
	User    *UserResponse    `json:"user"`
	Session *SessionResponse `json:"session"`
}

// ChangePasswordRequest is the request body for POST /api/v1/auth/password.
type ChangePasswordRequest struct {
	OldPassword         string `json:"old_password"`
	NewPassword         string `json:"new_password"`
	RevokeOtherSessions bool   `json:"revoke_other_sessions,omitempty"`
}

// ChangePasswordResponse is the response body for POST /api/v1/auth/password.
type ChangePasswordResponse struct {
	RevokedSessions int `json:"revoked_sessions"`
}

// ValidateTokenRequest is the request body for POST /api/v1/tokens/validate.
type ValidateTokenRequest struct {
	Token string `json:"token"`
	Touch bool   `json:"touch,omitempty"`
}

// ValidateTokenResponse is the response body for POST /api/v1/tokens/validate.
type ValidateTokenResponse struct {
	Valid     bool      `json:"valid"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Message   string    `json:"message,omitempty"`
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Username     string            `json:"username,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	DeviceID     string            `json:"device_id,omitempty"`
	CreatedBy    string            `json:"created_by,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	LastActive   time.Time         `json:"last_active"`
	LastAccessIP string            `json:"last_access_ip,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
}

// RenewSessionRequest is the request body for POST /api/v1/sessions/{id}/renew.
type RenewSessionRequest struct {
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

// RenewSessionResponse is the response body for POST /api/v1/sessions/{id}/renew.
type RenewSessionResponse struct {
	NewExpiresAt time.Time `json:"new_expires_at"`
}

// TouchSessionResponse is the response body for POST /api/v1/sessions/{id}/touch.
type TouchSessionResponse struct {
	LastActive time.Time `json:"last_active"`
}

// ListSessionsResponse is the response body for GET /api/v1/sessions.
type ListSessionsResponse struct {
	Items    []SessionResponse `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// RevokeUserSessionsResponse is the response body for POST /api/v1/users/{user_id}/sessions/revoke.
type RevokeUserSessionsResponse struct {
	RevokedCount int `json:"revoked_count"`
}

// CreateUserRequest is the request body for POST /admin/v1/users.
type CreateUserRequest struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	DisplayName string   `json:"display_name,omitempty"`
	Role        string   `json:"role,omitempty"`
	Allowlist   []string `json:"allowlist,omitempty"`
}

// ListUsersResponse is the response body for GET /admin/v1/users.
type ListUsersResponse struct {
	Users []UserResponse `json:"users"`
}

// SetUserStatusRequest is the request body for POST /admin/v1/users/{user_id}/status.
type SetUserStatusRequest struct {
	Status string `json:"status"`
}

// SetUserStatusResponse is the response body for POST /admin/v1/users/{user_id}/status.
type SetUserStatusResponse struct {
	User            *UserResponse `json:"user"`
	RevokedSessions int           `json:"revoked_sessions"`
}

// ResetPasswordRequest is the request body for POST /admin/v1/users/{user_id}/password/reset.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ResetPasswordResponse is the response body for POST /admin/v1/users/{user_id}/password/reset.
type ResetPasswordResponse struct {
	RevokedSessions int `json:"revoked_sessions"`
}

// SnapshotResponse represents a storage snapshot in API responses.
type SnapshotResponse struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	SessionCount int64     `json:"session_count"`
	SizeBytes    int64     `json:"size_bytes"`
	Path         string    `json:"path,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
}

// ListSnapshotsResponse is the response body for GET /admin/v1/backups/snapshots.
type ListSnapshotsResponse struct {
	Snapshots []SnapshotResponse `json:"snapshots"`
}

// StatusSummaryResponse is the response body for GET /admin/v1/status/summary.
type StatusSummaryResponse struct {
	Status         string    `json:"status"`
	Version        string    `json:"version"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	StorageBackend string    `json:"storage_backend"`
	SessionCount   int       `json:"session_count"`
	UserCount      int       `json:"user_count"`
	Time           time.Time `json:"time"`
}

// GCTriggerResponse is the response body for POST /admin/v1/gc/trigger.
type GCTriggerResponse struct {
	RemovedCount int `json:"removed_count"`
}
