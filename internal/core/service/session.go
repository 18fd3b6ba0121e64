// Package service provides domain services for CredGate.
//
// SessionService handles all session lifecycle operations.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
)

// DefaultSessionTTL is the session lifetime applied when none is requested.
const DefaultSessionTTL = 24 * time.Hour

// DefaultMaxSessionTTL caps requested session lifetimes.
const DefaultMaxSessionTTL = 30 * 24 * time.Hour

// SessionRepository defines the storage interface for session operations.
type SessionRepository interface {
	// Create creates a new session in storage.
	Create(ctx context.Context, session *domain.Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Update updates an existing session (with optimistic locking).
	Update(ctx context.Context, session *domain.Session, expectedVersion uint64) error

	// Delete deletes a session by ID.
	Delete(ctx context.Context, id string) error

	// List retrieves sessions matching the given filter.
	List(ctx context.Context, filter *SessionFilter) ([]*domain.Session, int, error)

	// CountByUserID returns the number of active sessions for a user.
	CountByUserID(ctx context.Context, userID string) (int, error)

	// ListByUserID retrieves all sessions for a user.
	ListByUserID(ctx context.Context, userID string) ([]*domain.Session, error)

	// DeleteByUserID deletes all sessions for a user.
	DeleteByUserID(ctx context.Context, userID string) (int, error)

	// DeleteExpired deletes all expired sessions and returns the count.
	DeleteExpired(ctx context.Context) (int, error)
}

// SessionFilter defines filter criteria for session queries.
type SessionFilter struct {
	UserID        string
	Username      string
	DeviceID      string
	CreatedBy     string // "login" or "admin"
	IPAddress     string
	Status        string // "active" or "expired"
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	ActiveAfter   *time.Time
	SortBy        string // "created_at" (default) or "last_active"
	SortOrder     string // "desc" (default) or "asc"
	Page          int    // 1-indexed
	PageSize      int    // default 20, max 100
}

// SessionServiceConfig holds configuration for SessionService.
type SessionServiceConfig struct {
	// DefaultTTL is applied when a create request carries no TTL (default: 24h).
	DefaultTTL time.Duration

	// MaxTTL caps requested session lifetimes (default: 30 days).
	MaxTTL time.Duration

	// MaxPerUser caps concurrent sessions per user (default: 50).
	MaxPerUser int
}

// DefaultSessionServiceConfig returns default configuration.
func DefaultSessionServiceConfig() *SessionServiceConfig {
	return &SessionServiceConfig{
		DefaultTTL: DefaultSessionTTL,
		MaxTTL:     DefaultMaxSessionTTL,
		MaxPerUser: domain.MaxSessionsPerUser,
	}
}

// SessionService handles session lifecycle operations.
type SessionService struct {
	repo         SessionRepository
	tokenService *TokenService
	defaultTTL   time.Duration
	maxTTL       time.Duration
	maxPerUser   int
}

// NewSessionService creates a new SessionService.
func NewSessionService(repo SessionRepository, tokenService *TokenService, config *SessionServiceConfig) *SessionService {
	if config == nil {
		config = DefaultSessionServiceConfig()
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultSessionTTL
	}
	if config.MaxTTL <= 0 {
		config.MaxTTL = DefaultMaxSessionTTL
	}
	if config.MaxPerUser <= 0 {
		config.MaxPerUser = domain.MaxSessionsPerUser
	}

	return &SessionService{
		repo:         repo,
		tokenService: tokenService,
		defaultTTL:   config.DefaultTTL,
		maxTTL:       config.MaxTTL,
		maxPerUser:   config.MaxPerUser,
	}
}

// clampTTL applies the default for zero TTLs and the configured cap.
func (s *SessionService) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	return ttl
}

// ============================================================================
// Session Create Operation
// ============================================================================

// CreateSessionRequest contains parameters for session creation.
type CreateSessionRequest struct {
	UserID    string            // Required
	Username  string            // Required, login name of the owner
	DeviceID  string            // Optional
	Data      map[string]string // Optional custom metadata
	TTL       time.Duration     // Optional, defaults to config value
	CreatedBy string            // "login" or "admin"
	ClientIP  string            // Client IP address
	UserAgent string            // Client User-Agent
}

// CreateSessionResponse contains the result of session creation.
type CreateSessionResponse struct {
	SessionID string          // The generated session ID
	Token     string          // The plaintext opaque token (only returned once)
	ExpiresAt int64           // Expiration timestamp (Unix MS)
	Session   *domain.Session // The full session object
}

// Create creates a new session with a server-generated token.
//
// The plaintext token is returned exactly once; only its hash is stored.
func (s *SessionService) Create(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	// 1. Validate required fields
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}
	if req.Username == "" {
		return nil, domain.ErrMissingArgument.WithDetails("username is required")
	}

	// 2. Check user quota
	count, err := s.repo.CountByUserID(ctx, req.UserID)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	if count >= s.maxPerUser {
		return nil, domain.ErrSessionQuotaExceeded.WithDetails(
			fmt.Sprintf("user has %d sessions (max %d)", count, s.maxPerUser),
		)
	}

	// 3. Generate token
	plainToken, tokenHash, err := s.tokenService.GenerateToken()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	// 4. Create session entity
	session, err := domain.NewSession(req.UserID, req.Username)
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	session.TokenHash = tokenHash
	session.IPAddress = req.ClientIP
	session.UserAgent = req.UserAgent
	session.LastAccessIP = req.ClientIP
	session.LastAccessUA = req.UserAgent
	session.DeviceID = req.DeviceID
	session.CreatedBy = req.CreatedBy
	session.Data = req.Data
	if session.Data == nil {
		session.Data = make(map[string]string)
	}
	if session.CreatedBy == "" {
		session.CreatedBy = domain.SessionCreatedByLogin
	}

	session.SetExpiration(s.clampTTL(req.TTL))

	// 5. Validate session
	if err := session.Validate(); err != nil {
		return nil, err
	}

	// 6. Persist to storage
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	// 7. Return response (including plaintext token)
	return &CreateSessionResponse{
		SessionID: session.ID,
		Token:     plainToken,
		ExpiresAt: session.ExpiresAt,
		Session:   session,
	}, nil
}

// ============================================================================
// Session Query Operations
// ============================================================================

// GetSessionRequest contains parameters for session retrieval.
type GetSessionRequest struct {
	SessionID string
}

// Get retrieves a session by ID.
func (s *SessionService) Get(ctx context.Context, req *GetSessionRequest) (*domain.Session, error) {
	// 1. Validate input
	if req.SessionID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("session_id is required")
	}

	// 2. Retrieve from storage
	session, err := s.repo.Get(ctx, req.SessionID)
	if err != nil {
		return nil, domain.ErrSessionNotFound.WithCause(err)
	}

	// 3. Check if expired (lazy expiry check)
	if session.IsExpired() {
		return nil, domain.ErrSessionExpired
	}

	// 4. Check if deleted
	if session.IsDeleted {
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

// ListSessionsRequest contains parameters for session listing.
type ListSessionsRequest struct {
	Filter *SessionFilter
}

// ListSessionsResponse contains the result of session listing.
type ListSessionsResponse struct {
	Items    []*domain.Session
	Total    int
	Page     int
	PageSize int
}

// List retrieves sessions matching the filter criteria.
func (s *SessionService) List(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	filter := req.Filter
	if filter == nil {
		filter = &SessionFilter{}
	}

	// Set defaults
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	} else if filter.PageSize > 100 {
		filter.PageSize = 100 // Max 100 per page
	}
	if filter.SortBy == "" {
		filter.SortBy = "created_at"
	}
	if filter.SortOrder == "" {
		filter.SortOrder = "desc"
	}

	// Query storage
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return &ListSessionsResponse{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// ============================================================================
// Session Update Operation
// ============================================================================

// UpdateSessionRequest contains parameters for session update.
type UpdateSessionRequest struct {
	SessionID string
	DeviceID  string            // Optional, if not set keeps existing
	Data      map[string]string // Optional, if not nil replaces existing
	TTL       time.Duration     // Optional, if > 0 updates expiration
}

// UpdateSessionResponse contains the result of session update.
type UpdateSessionResponse struct {
	Session *domain.Session
}

// Update updates the mutable fields of an existing session.
//
// The owning user is immutable; a session never changes hands.
func (s *SessionService) Update(ctx context.Context, req *UpdateSessionRequest) (*UpdateSessionResponse, error) {
	// 1. Validate input
	if req.SessionID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("session_id is required")
	}

	// 2. Get existing session
	session, err := s.repo.Get(ctx, req.SessionID)
	if err != nil {
		return nil, domain.ErrSessionNotFound.WithCause(err)
	}

	// 3. Check if expired or deleted
	if session.IsExpired() {
		return nil, domain.ErrSessionExpired
	}
	if session.IsDeleted {
		return nil, domain.ErrSessionNotFound
	}

	// 4. Update fields if provided
	oldVersion := session.Version

	if req.DeviceID != "" {
		session.DeviceID = req.DeviceID
	}
	if req.Data != nil {
		session.Data = req.Data
	}
	if req.TTL > 0 {
		session.SetExpiration(req.TTL)
	}

	session.LastActive = time.Now().UnixMilli()
	session.IncrVersion()

	// 5. Validate session
	if err := session.Validate(); err != nil {
		return nil, err
	}

	// 6. Persist with optimistic locking
	if err := s.repo.Update(ctx, session, oldVersion); err != nil {
		return nil, domain.ErrSessionVersionConflict.WithCause(err)
	}

	return &UpdateSessionResponse{
		Session: session,
	}, nil
}
