package command

import "time"

// Wire shapes for the server's JSON API. The CLI carries its own
// copies so it tracks the published contract rather than importing
// server internals.

type userPayload struct {
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

type sessionPayload struct {
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

type whoAmIPayload struct {
	User    *userPayload    `json:"user"`
	Session *sessionPayload `json:"session"`
}

type sessionListPayload struct {
	Items    []sessionPayload `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

type renewSessionRequest struct {
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

type renewSessionPayload struct {
	NewExpiresAt time.Time `json:"new_expires_at"`
}

type revokeSessionsPayload struct {
	RevokedCount int `json:"revoked_count"`
}

type createUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}

type userListPayload struct {
	Users []userPayload `json:"users"`
}

type setUserStatusRequest struct {
	Status string `json:"status"`
}

type setUserStatusPayload struct {
	User            *userPayload `json:"user"`
	RevokedSessions int          `json:"revoked_sessions"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type resetPasswordPayload struct {
	RevokedSessions int `json:"revoked_sessions"`
}

type snapshotPayload struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	SessionCount int64     `json:"session_count"`
	SizeBytes    int64     `json:"size_bytes"`
	Path         string    `json:"path,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
}

type snapshotListPayload struct {
	Snapshots []snapshotPayload `json:"snapshots"`
}

type statusSummaryPayload struct {
	Status         string    `json:"status"`
	Version        string    `json:"version"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	StorageBackend string    `json:"storage_backend"`
	SessionCount   int       `json:"session_count"`
	UserCount      int       `json:"user_count"`
	Time           time.Time `json:"time"`
}

type gcResultPayload struct {
	RemovedCount int `json:"removed_count"`
}
