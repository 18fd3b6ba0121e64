// Package domain defines the core domain models for CredGate.
package domain

import (
	"crypto/rand"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/credgate/pkg/passhash"
)

// User constants.
const (
	// UserIDPrefix is the prefix for user IDs (public, uses hyphen).
	UserIDPrefix = "cgus-"

	// MinUsernameLength is the minimum username length.
	MinUsernameLength = 3

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8

	// MaxPasswordLength caps password input to bound hashing cost.
	MaxPasswordLength = 256
)

// Role defines the permission level of a user.
type Role string

const (
	// RoleUser is a regular account: may log in, inspect and revoke
	// its own sessions, and change its own password.
	RoleUser Role = "user"

	// RoleService is a machine account for backend services that
	// validate tokens and read session state.
	RoleService Role = "service"

	// RoleAdmin has full access to all operations including user management.
	RoleAdmin Role = "admin"
)

// ValidRoles returns all valid roles.
func ValidRoles() []Role {
	return []Role{RoleUser, RoleService, RoleAdmin}
}

// IsValidRole checks if a string is a valid role.
func IsValidRole(r string) bool {
	switch Role(r) {
	case RoleUser, RoleService, RoleAdmin:
		return true
	}
	return false
}

// UserStatus defines the administrative status of a user account.
type UserStatus string

const (
	// UserStatusActive indicates the account may authenticate.
	UserStatusActive UserStatus = "active"

	// UserStatusDisabled indicates the account has been disabled.
	UserStatusDisabled UserStatus = "disabled"
)

// ValidUserStatuses returns all valid user statuses.
func ValidUserStatuses() []UserStatus {
	return []UserStatus{UserStatusActive, UserStatusDisabled}
}

// IsValidUserStatus checks if a string is a valid user status.
func IsValidUserStatus(s string) bool {
	switch UserStatus(s) {
	case UserStatusActive, UserStatusDisabled:
		return true
	}
	return false
}

// Permission represents an action that can be performed.
type Permission string

// Permission constants for all operations.
const (
	// Session permissions
	PermSessionRead      Permission = "session.read"
	PermSessionList      Permission = "session.list"
	PermSessionRevoke    Permission = "session.revoke"
	PermSessionRevokeAll Permission = "session.revoke_all"

	// Token permissions
	PermTokenValidate Permission = "token.validate"

	// Password permissions
	PermPasswordChange Permission = "password.change"

	// User directory permissions (admin only)
	PermUserCreate  Permission = "user.create"
	PermUserRead    Permission = "user.read"
	PermUserList    Permission = "user.list"
	PermUserUpdate  Permission = "user.update"
	PermUserDisable Permission = "user.disable"
	PermUserEnable  Permission = "user.enable"

	// System permissions (admin only)
	PermSystemStatus  Permission = "system.status"
	PermSystemHealth  Permission = "system.health"
	PermSystemBackup  Permission = "system.backup"
	PermSystemRestore Permission = "system.restore"
	PermSystemConfig  Permission = "system.config"

	// Metrics permissions
	PermMetricsRead Permission = "metrics.read"
)

// rolePermissions defines the permissions granted to each role.
// Higher roles inherit all permissions of lower roles.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermSessionRead,
		PermSessionRevoke,
		PermPasswordChange,
	},
	RoleService: {
		PermTokenValidate,
		PermSessionRead,
		PermSessionList,
		PermPasswordChange,
		PermMetricsRead,
	},
	RoleAdmin: {
		// All permissions
		PermSessionRead,
		PermSessionList,
		PermSessionRevoke,
		PermSessionRevokeAll,
		PermTokenValidate,
		PermPasswordChange,
		PermUserCreate,
		PermUserRead,
		PermUserList,
		PermUserUpdate,
		PermUserDisable,
		PermUserEnable,
		PermSystemStatus,
		PermSystemHealth,
		PermSystemBackup,
		PermSystemRestore,
		PermSystemConfig,
		PermMetricsRead,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role Role, perm Permission) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// GetPermissions returns all permissions for a role.
func GetPermissions(role Role) []Permission {
	if permissions, ok := rolePermissions[role]; ok {
		// Return a copy to prevent modification
		result := make([]Permission, len(permissions))
		copy(result, permissions)
		return result
	}
	return nil
}

// RoleHierarchy returns the hierarchy level of a role (higher = more permissions).
func RoleHierarchy(role Role) int {
	switch role {
	case RoleUser:
		return 1
	case RoleService:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// IsRoleAtLeast checks if a role is at least the specified level.
func IsRoleAtLeast(role, required Role) bool {
	return RoleHierarchy(role) >= RoleHierarchy(required)
}

// usernamePattern restricts usernames to lowercase letters, digits,
// dots, underscores and hyphens, starting with a letter or digit.
var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// IsValidUsername checks if a string is a valid username.
// Usernames are case-insensitive; validation runs on the lowercase form.
func IsValidUsername(name string) bool {
	name = strings.ToLower(name)
	if len(name) < MinUsernameLength || len(name) > MaxUsernameLength {
		return false
	}
	return usernamePattern.MatchString(name)
}

// NormalizeUsername normalizes a username to lowercase.
// Returns empty string if the username is invalid.
func NormalizeUsername(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if !IsValidUsername(normalized) {
		return ""
	}
	return normalized
}

// IsValidUserID checks if a string is a valid user ID format.
// It normalizes the ID to lowercase before validation.
func IsValidUserID(id string) bool {
	// Normalize to lowercase
	id = strings.ToLower(id)

	// Check prefix
	if !strings.HasPrefix(id, UserIDPrefix) {
		return false
	}

	// cgus- (5) + ULID (26) = 31 characters
	if len(id) != 31 {
		return false
	}

	// Validate ULID portion
	ulidPart := strings.ToUpper(id[len(UserIDPrefix):])
	_, err := ulid.Parse(ulidPart)
	return err == nil
}

// NormalizeUserID normalizes a user ID to lowercase.
// Returns empty string if the ID is invalid.
func NormalizeUserID(id string) string {
	normalized := strings.ToLower(id)
	if !IsValidUserID(normalized) {
		return ""
	}
	return normalized
}

// CheckPasswordPolicy validates a plaintext password against policy.
// Returns a DomainError with code CG-USER-4002 if the password is rejected.
func CheckPasswordPolicy(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordPolicy.WithDetails("password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordPolicy.WithDetails("password exceeds 256 characters")
	}
	return nil
}

// User represents a directory account that can authenticate.
type User struct {
	// ID is the unique identifier (public).
	// Format: cgus-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	// Username is the unique login name (lowercase).
	Username string `json:"username"`

	// DisplayName is an optional human-readable name.
	DisplayName string `json:"display_name,omitempty"`

	// PasswordHash is the Argon2id PHC hash of the password (never exposed).
	PasswordHash string `json:"-"`

	// Role defines the permission level.
	Role Role `json:"role"`

	// Status is the administrative status (active/disabled).
	Status UserStatus `json:"status"`

	// Allowlist contains IP/CIDR allowlist entries.
	// Empty list means no IP restriction.
	Allowlist []string `json:"allowlist,omitempty"`

	// FailedLogins counts consecutive failed login attempts.
	FailedLogins int `json:"failed_logins,omitempty"`

	// LockedUntil is the lockout expiry (Unix MS), 0 = not locked.
	LockedUntil int64 `json:"locked_until,omitempty"`

	// LastLogin is the last successful login timestamp (Unix MS).
	LastLogin int64 `json:"last_login,omitempty"`

	// LastLoginIP is the client IP of the last successful login.
	LastLoginIP string `json:"last_login_ip,omitempty"`

	// CreatedAt is the creation timestamp (Unix MS).
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the last modification timestamp (Unix MS).
	UpdatedAt int64 `json:"updated_at"`

	// CreatedBy is the user ID of the creator or "system".
	CreatedBy string `json:"created_by"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// User constraints.
const (
	MaxAllowlistEntries  = 100
	MaxDisplayNameLength = 256

	// DefaultLockoutThreshold is the failed login count that locks an account.
	DefaultLockoutThreshold = 5

	// DefaultLockoutDuration is how long a lockout lasts.
	DefaultLockoutDuration = 15 * time.Minute
)

// NewUser creates a new User with a generated ID and hashed password.
// The plaintext password is only used transiently for hashing.
func NewUser(username, password string, role Role) (*User, error) {
	normalized := NormalizeUsername(username)
	if normalized == "" {
		return nil, ErrUserValidation.WithDetails("username format invalid")
	}

	if err := CheckPasswordPolicy(password); err != nil {
		return nil, err
	}

	// Generate user ID using ULID
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(timeNow()), entropy)
	if err != nil {
		return nil, ErrInternalServer.WithCause(err)
	}

	hash, err := passhash.Hash(password)
	if err != nil {
		return nil, ErrInternalServer.WithCause(err)
	}

	now := currentTimeMillis()
	return &User{
		ID:           UserIDPrefix + strings.ToLower(id.String()),
		Username:     normalized,
		PasswordHash: hash,
		Role:         role,
		Status:       UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}, nil
}

// SetPassword replaces the password hash after a policy check.
func (u *User) SetPassword(password string) error {
	if err := CheckPasswordPolicy(password); err != nil {
		return err
	}
	hash, err := passhash.Hash(password)
	if err != nil {
		return ErrInternalServer.WithCause(err)
	}
	u.PasswordHash = hash
	u.UpdatedAt = currentTimeMillis()
	return nil
}

// IsLocked returns true if the account is inside a lockout window.
func (u *User) IsLocked() bool {
	if u.LockedUntil == 0 {
		return false
	}
	return currentTimeMillis() < u.LockedUntil
}

// IsActive returns true if the account may authenticate right now.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive && !u.IsLocked()
}

// RecordFailure registers a failed login attempt. When the consecutive
// failure count reaches threshold, the account is locked for lockout.
func (u *User) RecordFailure(threshold int, lockout time.Duration) {
	u.FailedLogins++
	if threshold > 0 && u.FailedLogins >= threshold {
		u.LockedUntil = currentTimeMillis() + lockout.Milliseconds()
	}
	u.UpdatedAt = currentTimeMillis()
}

// RecordLogin registers a successful login: failure counters reset and
// any expired lockout is cleared.
func (u *User) RecordLogin(ip string) {
	u.FailedLogins = 0
	u.LockedUntil = 0
	u.LastLogin = currentTimeMillis()
	u.LastLoginIP = ip
	u.UpdatedAt = currentTimeMillis()
}

// IncrVersion increments the version number for optimistic locking.
func (u *User) IncrVersion() {
	u.Version++
}

// CreatedAtTime returns CreatedAt as time.Time.
func (u *User) CreatedAtTime() time.Time {
	return time.UnixMilli(u.CreatedAt)
}

// LastLoginTime returns LastLogin as time.Time.
func (u *User) LastLoginTime() time.Time {
	if u.LastLogin == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u.LastLogin)
}

// Validate validates the user fields.
func (u *User) Validate() error {
	var violations []string

	// Required fields
	if u.ID == "" {
		violations = append(violations, "id is required")
	} else if !IsValidUserID(u.ID) {
		violations = append(violations, "id format invalid")
	}

	if u.Username == "" {
		violations = append(violations, "username is required")
	} else if !IsValidUsername(u.Username) {
		violations = append(violations, "username format invalid")
	}

	if u.PasswordHash == "" {
		violations = append(violations, "password_hash is required")
	}

	if !IsValidRole(string(u.Role)) {
		violations = append(violations, "invalid role")
	}

	if !IsValidUserStatus(string(u.Status)) {
		violations = append(violations, "invalid status")
	}

	// Constraints
	if len(u.Allowlist) > MaxAllowlistEntries {
		violations = append(violations, "allowlist exceeds 100 entries")
	}

	if len(u.DisplayName) > MaxDisplayNameLength {
		violations = append(violations, "display_name exceeds 256 characters")
	}

	if len(violations) > 0 {
		return ErrUserValidation.WithDetails(strings.Join(violations, "; "))
	}

	return nil
}

// Clone creates a deep copy of the user.
func (u *User) Clone() *User {
	clone := *u
	if u.Allowlist != nil {
		clone.Allowlist = make([]string, len(u.Allowlist))
		copy(clone.Allowlist, u.Allowlist)
	}
	return &clone
}

// currentTimeMillis returns the current Unix timestamp in milliseconds.
// This is a package-level function to enable testing with mock time.
var currentTimeMillis = func() int64 {
	return timeNow().UnixMilli()
}

// timeNow is a hook for testing.
var timeNow = time.Now
