// Package service provides domain services for CredGate.
//
// DirectoryService manages the user directory: account creation,
// lookup, updates, and administrative enable/disable.
package service

import (
	"context"

	"github.com/yndnr/credgate/internal/core/domain"
)

// UserRepository defines the storage interface for directory accounts.
type UserRepository interface {
	// Create creates a new user. Fails if the username is taken.
	Create(ctx context.Context, user *domain.User) error

	// Get retrieves a user by ID.
	Get(ctx context.Context, id string) (*domain.User, error)

	// GetByUsername retrieves a user by login name (lowercase).
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// List retrieves all users.
	List(ctx context.Context) ([]*domain.User, error)

	// Count returns the number of users in the directory.
	Count(ctx context.Context) (int, error)
}

// UserInfo is the sanitized view of a directory account. It never
// carries the password hash.
type UserInfo struct {
	ID          string
	Username    string
	DisplayName string
	Role        string
	Status      string
	Locked      bool
	LastLogin   int64
	LastLoginIP string
	CreatedAt   int64
	UpdatedAt   int64
	CreatedBy   string
}

// NewUserInfo builds the sanitized view of a user.
func NewUserInfo(u *domain.User) *UserInfo {
	return &UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		Status:      string(u.Status),
		Locked:      u.IsLocked(),
		LastLogin:   u.LastLogin,
		LastLoginIP: u.LastLoginIP,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		CreatedBy:   u.CreatedBy,
	}
}

// DirectoryService manages directory accounts.
type DirectoryService struct {
	repo     UserRepository
	sessions *SessionService
}

// NewDirectoryService creates a new DirectoryService.
//
// The session service is used to revoke sessions of disabled accounts;
// it may be nil in contexts that never disable users.
func NewDirectoryService(repo UserRepository, sessions *SessionService) *DirectoryService {
	return &DirectoryService{
		repo:     repo,
		sessions: sessions,
	}
}

// ============================================================================
// User Create Operation
// ============================================================================

// CreateUserRequest contains parameters for account creation.
type CreateUserRequest struct {
	Username    string   // Required
	Password    string   // Required
	DisplayName string   // Optional
	Role        string   // Optional, defaults to "user"
	Allowlist   []string // Optional IP/CIDR allowlist
	CreatedBy   string   // User ID of the creator or "system"
}

// CreateUserResponse contains the created account.
type CreateUserResponse struct {
	User *UserInfo
}

// CreateUser creates a new directory account.
func (s *DirectoryService) CreateUser(ctx context.Context, req *CreateUserRequest) (*CreateUserResponse, error) {
	// 1. Validate role
	role := req.Role
	if role == "" {
		role = string(domain.RoleUser)
	}
	if !domain.IsValidRole(role) {
		return nil, domain.ErrUserValidation.WithDetails("invalid role: " + role)
	}

	// 2. Reject taken usernames early (backends also enforce uniqueness)
	normalized := domain.NormalizeUsername(req.Username)
	if normalized == "" {
		return nil, domain.ErrUserValidation.WithDetails("username format invalid")
	}
	if _, err := s.repo.GetByUsername(ctx, normalized); err == nil {
		return nil, domain.ErrUserConflict
	}

	// 3. Build the account (hashes the password)
	user, err := domain.NewUser(req.Username, req.Password, domain.Role(role))
	if err != nil {
		return nil, err
	}
	user.DisplayName = req.DisplayName
	user.Allowlist = req.Allowlist
	user.CreatedBy = req.CreatedBy
	if user.CreatedBy == "" {
		user.CreatedBy = "system"
	}

	// 4. Validate and persist
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return &CreateUserResponse{User: NewUserInfo(user)}, nil
}

// ============================================================================
// User Query Operations
// ============================================================================

// GetUserRequest contains parameters for account retrieval.
type GetUserRequest struct {
	UserID   string // One of UserID or Username is required
	Username string
}

// GetUser retrieves an account by ID or username.
func (s *DirectoryService) GetUser(ctx context.Context, req *GetUserRequest) (*UserInfo, error) {
	switch {
	case req.UserID != "":
		user, err := s.repo.Get(ctx, req.UserID)
		if err != nil {
			return nil, domain.ErrUserNotFound.WithCause(err)
		}
		return NewUserInfo(user), nil

	case req.Username != "":
		user, err := s.repo.GetByUsername(ctx, domain.NormalizeUsername(req.Username))
		if err != nil {
			return nil, domain.ErrUserNotFound.WithCause(err)
		}
		return NewUserInfo(user), nil

	default:
		return nil, domain.ErrMissingArgument.WithDetails("user_id or username is required")
	}
}

// ListUsersRequest contains parameters for account listing.
type ListUsersRequest struct {
	Role   string // Optional filter by role
	Status string // Optional filter by status
}

// ListUsersResponse contains the result of account listing.
type ListUsersResponse struct {
	Users []*UserInfo
}

// ListUsers retrieves all accounts, optionally filtered.
func (s *DirectoryService) ListUsers(ctx context.Context, req *ListUsersRequest) (*ListUsersResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	var result []*UserInfo
	for _, user := range users {
		if req.Role != "" && string(user.Role) != req.Role {
			continue
		}
		if req.Status != "" && string(user.Status) != req.Status {
			continue
		}
		result = append(result, NewUserInfo(user))
	}

	return &ListUsersResponse{Users: result}, nil
}

// ============================================================================
// User Update Operations
// ============================================================================

// UpdateUserRequest contains parameters for account update.
type UpdateUserRequest struct {
	UserID      string   // Required
	DisplayName string   // Optional, if not set keeps existing
	Role        string   // Optional, if not set keeps existing
	Allowlist   []string // Optional, if not nil replaces existing
}

// UpdateUserResponse contains the updated account.
type UpdateUserResponse struct {
	User *UserInfo
}

// UpdateUser updates the mutable fields of an account.
func (s *DirectoryService) UpdateUser(ctx context.Context, req *UpdateUserRequest) (*UpdateUserResponse, error) {
	// 1. Validate input
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}
	if req.Role != "" && !domain.IsValidRole(req.Role) {
		return nil, domain.ErrUserValidation.WithDetails("invalid role: " + req.Role)
	}

	// 2. Load the account
	user, err := s.repo.Get(ctx, req.UserID)
	if err != nil {
		return nil, domain.ErrUserNotFound.WithCause(err)
	}

	// 3. Apply changes
	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}
	if req.Role != "" {
		user.Role = domain.Role(req.Role)
	}
	if req.Allowlist != nil {
		user.Allowlist = req.Allowlist
	}

	// 4. Validate and persist
	if err := user.Validate(); err != nil {
		return nil, err
	}
	user.IncrVersion()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return &UpdateUserResponse{User: NewUserInfo(user)}, nil
}

// SetUserStatusRequest contains parameters for enabling or disabling an account.
type SetUserStatusRequest struct {
	UserID string
	Status domain.UserStatus
}

// SetUserStatusResponse contains the result of a status change.
type SetUserStatusResponse struct {
	User            *UserInfo
	RevokedSessions int
}

// SetUserStatus enables or disables an account.
//
// Disabling an account revokes all of its sessions so existing
// credentials stop working immediately.
func (s *DirectoryService) SetUserStatus(ctx context.Context, req *SetUserStatusRequest) (*SetUserStatusResponse, error) {
	// 1. Validate input
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}
	if !domain.IsValidUserStatus(string(req.Status)) {
		return nil, domain.ErrUserValidation.WithDetails("invalid status: " + string(req.Status))
	}

	// 2. Load and update the account
	user, err := s.repo.Get(ctx, req.UserID)
	if err != nil {
		return nil, domain.ErrUserNotFound.WithCause(err)
	}

	user.Status = req.Status
	user.IncrVersion()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	// 3. Revoke sessions of disabled accounts
	revoked := 0
	if req.Status == domain.UserStatusDisabled && s.sessions != nil {
		resp, err := s.sessions.RevokeByUser(ctx, &RevokeByUserRequest{UserID: user.ID})
		if err == nil {
			revoked = resp.RevokedCount
		}
	}

	return &SetUserStatusResponse{
		User:            NewUserInfo(user),
		RevokedSessions: revoked,
	}, nil
}

// ResetPasswordRequest contains parameters for an administrative
// password reset.
type ResetPasswordRequest struct {
	UserID      string
	NewPassword string
}

// ResetPasswordResponse contains the result of a password reset.
type ResetPasswordResponse struct {
	RevokedSessions int
}

// ResetPassword replaces an account password without knowing the old
// one. All sessions of the account are revoked.
func (s *DirectoryService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) (*ResetPasswordResponse, error) {
	// 1. Validate input
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}

	// 2. Load the account and replace the hash
	user, err := s.repo.Get(ctx, req.UserID)
	if err != nil {
		return nil, domain.ErrUserNotFound.WithCause(err)
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return nil, err
	}
	user.FailedLogins = 0
	user.LockedUntil = 0
	user.IncrVersion()

	// 3. Persist
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	// 4. Revoke all sessions so old credentials stop working
	revoked := 0
	if s.sessions != nil {
		resp, err := s.sessions.RevokeByUser(ctx, &RevokeByUserRequest{UserID: user.ID})
		if err == nil {
			revoked = resp.RevokedCount
		}
	}

	return &ResetPasswordResponse{RevokedSessions: revoked}, nil
}

// ============================================================================
// Directory Bootstrap
// ============================================================================

// BootstrapUser describes an account seeded at startup.
type BootstrapUser struct {
	Username    string
	Password    string
	DisplayName string
	Role        string
}

// Bootstrap seeds the directory with the given accounts. Accounts whose
// username already exists are left untouched, so bootstrapping is safe
// to run on every startup. Returns the number of accounts created.
func (s *DirectoryService) Bootstrap(ctx context.Context, users []BootstrapUser) (int, error) {
	created := 0
	for _, seed := range users {
		normalized := domain.NormalizeUsername(seed.Username)
		if normalized == "" {
			return created, domain.ErrUserValidation.WithDetails("bootstrap username invalid: " + seed.Username)
		}

		if _, err := s.repo.GetByUsername(ctx, normalized); err == nil {
			continue // already present
		}

		_, err := s.CreateUser(ctx, &CreateUserRequest{
			Username:    seed.Username,
			Password:    seed.Password,
			DisplayName: seed.DisplayName,
			Role:        seed.Role,
			CreatedBy:   "system",
		})
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
