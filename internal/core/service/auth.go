// Package service provides domain services for CredGate.
//
// AuthService implements the credential handshake: login, logout,
// identity lookup, and password change.
package service

import (
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/pkg/passhash"
)

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	// SessionTTL is the lifetime of login-issued sessions (default: 24h).
	SessionTTL time.Duration

	// LockoutThreshold is the consecutive failure count that locks an
	// account (default: 5, 0 disables lockout).
	LockoutThreshold int

	// LockoutDuration is how long a lockout lasts (default: 15m).
	LockoutDuration time.Duration

	// LoginPerMinute is the allowed login attempts per minute for a
	// single username+IP pair (default: 10).
	LoginPerMinute int

	// LoginBurst is the burst size of the login limiter (default: 5).
	LoginBurst int

	// GlobalAllowlist is the global IP/CIDR allowlist (empty = no restriction).
	GlobalAllowlist []string
}

// DefaultAuthServiceConfig returns default configuration.
func DefaultAuthServiceConfig() *AuthServiceConfig {
	return &AuthServiceConfig{
		SessionTTL:       DefaultSessionTTL,
		LockoutThreshold: domain.DefaultLockoutThreshold,
		LockoutDuration:  domain.DefaultLockoutDuration,
		LoginPerMinute:   10,
		LoginBurst:       5,
		GlobalAllowlist:  []string{},
	}
}

// AuthService handles the credential handshake against the user directory.
type AuthService struct {
	users    UserRepository
	sessions *SessionService
	tokens   *TokenService
	limiters *LoginLimiterRegistry

	sessionTTL       time.Duration
	lockoutThreshold int
	lockoutDuration  time.Duration
	globalAllow      []string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserRepository, sessions *SessionService, tokens *TokenService, config *AuthServiceConfig) *AuthService {
	if config == nil {
		config = DefaultAuthServiceConfig()
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.LockoutDuration <= 0 {
		config.LockoutDuration = domain.DefaultLockoutDuration
	}
	if config.LoginPerMinute <= 0 {
		config.LoginPerMinute = 10
	}
	if config.LoginBurst <= 0 {
		config.LoginBurst = 5
	}

	return &AuthService{
		users:            users,
		sessions:         sessions,
		tokens:           tokens,
		limiters:         NewLoginLimiterRegistry(config.LoginPerMinute, config.LoginBurst),
		sessionTTL:       config.SessionTTL,
		lockoutThreshold: config.LockoutThreshold,
		lockoutDuration:  config.LockoutDuration,
		globalAllow:      config.GlobalAllowlist,
	}
}

// Limiters exposes the login limiter registry for background pruning.
func (s *AuthService) Limiters() *LoginLimiterRegistry {
	return s.limiters
}

// ============================================================================
// Login Operation
// ============================================================================

// LoginRequest contains the submitted credentials and client context.
type LoginRequest struct {
	Username  string // Required
	Password  string // Required
	DeviceID  string // Optional client device identifier
	ClientIP  string // Client IP address
	UserAgent string // Client User-Agent
}

// LoginResponse contains the result of a successful login.
type LoginResponse struct {
	// Token is the session credential (only returned once).
	Token string

	// SessionID identifies the created session.
	SessionID string

	// ExpiresAt is the session expiry (Unix MS).
	ExpiresAt int64

	// User is the sanitized account of the authenticated user.
	User *UserInfo
}

// Login authenticates a username/password pair and creates a session.
//
// A session exists if and only if login succeeded: any error return
// leaves no session behind. Unknown usernames and wrong passwords
// share the same error so responses cannot be used to enumerate
// accounts.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	// 1. Validate input presence
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		return nil, domain.ErrCredentialValidation.WithDetails("username and password are required")
	}

	// 2. Throttle attempts per username+IP before touching the directory
	limiterKey := username + "|" + req.ClientIP
	if !s.limiters.Allow(limiterKey) {
		return nil, domain.ErrLoginRateLimited
	}

	// 3. Look up the account (collapsed to the generic credential error)
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	// 4. Check account status before the expensive hash verification
	if user.IsLocked() {
		return nil, domain.ErrUserLocked
	}
	if user.Status == domain.UserStatusDisabled {
		return nil, domain.ErrUserDisabled
	}

	// 5. Check IP allowlist (global + per-user)
	if err := s.checkIPAllowlist(req.ClientIP, user.Allowlist); err != nil {
		return nil, err
	}

	// 6. Verify the password (Argon2id, expensive). Verification errors
	// and mismatches share the generic credential error.
	ok, err := passhash.Verify(req.Password, user.PasswordHash)
	if err != nil || !ok {
		s.recordFailure(ctx, user)
		return nil, domain.ErrInvalidCredentials
	}

	// 7. Upgrade the stored hash if parameters have changed (best-effort,
	// login result does not depend on it)
	if needs, err := passhash.NeedsRehash(user.PasswordHash); err == nil && needs {
		if newHash, err := passhash.Hash(req.Password); err == nil {
			user.PasswordHash = newHash
		}
	}

	// 8. Create the session
	created, err := s.sessions.Create(ctx, &CreateSessionRequest{
		UserID:    user.ID,
		Username:  user.Username,
		DeviceID:  req.DeviceID,
		TTL:       s.sessionTTL,
		CreatedBy: domain.SessionCreatedByLogin,
		ClientIP:  req.ClientIP,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	// 9. Issue the credential in the configured format
	issued, err := s.tokens.Issue(&IssueTokenRequest{
		Session:     created.Session,
		OpaqueToken: created.Token,
		Username:    user.Username,
		Role:        string(user.Role),
	})
	if err != nil {
		// Roll the session back so a failed login leaves nothing behind
		_, _ = s.sessions.Revoke(ctx, &RevokeSessionRequest{SessionID: created.SessionID})
		return nil, err
	}

	// 10. Record the successful login and clear throttling state (best-effort)
	user.RecordLogin(req.ClientIP)
	user.IncrVersion()
	_ = s.users.Update(ctx, user)
	s.limiters.Reset(limiterKey)

	return &LoginResponse{
		Token:     issued.Credential,
		SessionID: created.SessionID,
		ExpiresAt: issued.ExpiresAt,
		User:      NewUserInfo(user),
	}, nil
}

// recordFailure persists a failed attempt against the account.
// Failures are best-effort: a storage error never changes the login result.
func (s *AuthService) recordFailure(ctx context.Context, user *domain.User) {
	user.RecordFailure(s.lockoutThreshold, s.lockoutDuration)
	user.IncrVersion()
	_ = s.users.Update(ctx, user)
}

// ============================================================================
// Logout Operation
// ============================================================================

// LogoutRequest contains parameters for logout.
type LogoutRequest struct {
	SessionID string
}

// LogoutResponse contains the result of logout.
type LogoutResponse struct {
	Success bool
}

// Logout revokes the session backing the presented credential.
//
// Logout is idempotent: revoking an already absent session succeeds.
func (s *AuthService) Logout(ctx context.Context, req *LogoutRequest) (*LogoutResponse, error) {
	if req.SessionID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("session_id is required")
	}

	resp, err := s.sessions.Revoke(ctx, &RevokeSessionRequest{SessionID: req.SessionID})
	if err != nil {
		return nil, err
	}

	return &LogoutResponse{Success: resp.Success}, nil
}

// ============================================================================
// WhoAmI Operation
// ============================================================================

// WhoAmIRequest contains parameters for identity lookup.
type WhoAmIRequest struct {
	SessionID string
}

// WhoAmIResponse describes the authenticated identity.
type WhoAmIResponse struct {
	User    *UserInfo
	Session *domain.Session
}

// WhoAmI resolves the session into the owning account.
func (s *AuthService) WhoAmI(ctx context.Context, req *WhoAmIRequest) (*WhoAmIResponse, error) {
	session, err := s.sessions.Get(ctx, &GetSessionRequest{SessionID: req.SessionID})
	if err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, session.UserID)
	if err != nil {
		return nil, domain.ErrUserNotFound.WithCause(err)
	}

	return &WhoAmIResponse{
		User:    NewUserInfo(user),
		Session: session,
	}, nil
}

// ============================================================================
// Request Authentication
// ============================================================================

// AuthContext describes the authenticated caller of a request.
type AuthContext struct {
	User    *domain.User
	Session *domain.Session
}

// IsAdmin reports whether the caller has the admin role.
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.User != nil && a.User.Role == domain.RoleAdmin
}

// Authenticate resolves a bearer credential into its session and
// owning account. The session-auth middleware calls this on every
// authenticated request.
//
// A disabled account fails authentication even while its sessions are
// still in storage; a lockout does not, since lockouts only gate new
// logins.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*AuthContext, error) {
	resp, err := s.tokens.Validate(ctx, &ValidateTokenRequest{Token: token})
	if err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, resp.Session.UserID)
	if err != nil {
		return nil, domain.ErrTokenInvalid.WithCause(err)
	}
	if user.Status == domain.UserStatusDisabled {
		return nil, domain.ErrUserDisabled
	}

	return &AuthContext{User: user, Session: resp.Session}, nil
}

// ============================================================================
// Password Change Operation
// ============================================================================

// ChangePasswordRequest contains parameters for a password change.
type ChangePasswordRequest struct {
	UserID      string // Required
	OldPassword string // Required
	NewPassword string // Required

	// RevokeOtherSessions revokes every other session of the user,
	// keeping only KeepSessionID.
	RevokeOtherSessions bool
	KeepSessionID       string
}

// ChangePasswordResponse contains the result of a password change.
type ChangePasswordResponse struct {
	RevokedSessions int
}

// ChangePassword verifies the current password and replaces the hash.
func (s *AuthService) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*ChangePasswordResponse, error) {
	// 1. Validate input
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return nil, domain.ErrCredentialValidation.WithDetails("old and new passwords are required")
	}

	// 2. Load the account
	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, domain.ErrUserNotFound.WithCause(err)
	}

	// 3. Verify the current password
	ok, err := passhash.Verify(req.OldPassword, user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrInvalidCredentials
	}

	// 4. Replace the hash (policy check inside SetPassword)
	if err := user.SetPassword(req.NewPassword); err != nil {
		return nil, err
	}
	user.IncrVersion()

	// 5. Persist
	if err := s.users.Update(ctx, user); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	// 6. Optionally revoke other sessions
	revoked := 0
	if req.RevokeOtherSessions {
		sessions, err := s.sessions.repo.ListByUserID(ctx, user.ID)
		if err != nil {
			return nil, domain.ErrStorageError.WithCause(err)
		}
		for _, sess := range sessions {
			if sess.ID == req.KeepSessionID {
				continue
			}
			if _, err := s.sessions.Revoke(ctx, &RevokeSessionRequest{SessionID: sess.ID}); err == nil {
				revoked++
			}
		}
	}

	return &ChangePasswordResponse{RevokedSessions: revoked}, nil
}

// checkIPAllowlist checks if the client IP is in the allowlist.
func (s *AuthService) checkIPAllowlist(clientIP string, userAllowlist []string) error {
	// Combine global and user-specific allowlists
	var allowlist []string
	if len(s.globalAllow) > 0 || len(userAllowlist) > 0 {
		allowlist = make([]string, 0, len(s.globalAllow)+len(userAllowlist))
		allowlist = append(allowlist, s.globalAllow...)
		allowlist = append(allowlist, userAllowlist...)
	}

	// Empty allowlist means no restriction
	if len(allowlist) == 0 {
		return nil
	}

	// Parse client IP
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return domain.ErrIPNotAllowed.WithDetails("invalid client IP format")
	}

	// Check each allowlist entry
	for _, entry := range allowlist {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				continue // Skip invalid CIDR
			}
			if ipNet.Contains(ip) {
				return nil
			}
		} else {
			allowedIP := net.ParseIP(entry)
			if allowedIP != nil && allowedIP.Equal(ip) {
				return nil
			}
		}
	}

	return domain.ErrIPNotAllowed.WithDetails("client IP not in allowlist")
}

// ============================================================================
// LoginLimiterRegistry - Per-Identity Login Throttling
// ============================================================================

// LoginLimiterRegistry manages token-bucket limiters keyed by
// username+IP. Entries record their last use so idle limiters can be
// pruned by a background task.
type LoginLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*loginLimiterEntry
	limit    rate.Limit
	burst    int
}

type loginLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // Unix nanos
}

// NewLoginLimiterRegistry creates a registry allowing perMinute attempts
// per key with the given burst.
func NewLoginLimiterRegistry(perMinute, burst int) *LoginLimiterRegistry {
	return &LoginLimiterRegistry{
		limiters: make(map[string]*loginLimiterEntry),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

// Allow reports whether an attempt for the key may proceed now.
func (r *LoginLimiterRegistry) Allow(key string) bool {
	entry := r.getOrCreate(key)
	entry.lastSeen.Store(time.Now().UnixNano())
	return entry.limiter.Allow()
}

// Reset removes the limiter for a key (called after a successful login).
func (r *LoginLimiterRegistry) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, key)
}

// Prune removes limiters idle for longer than maxIdle and returns the
// number removed.
func (r *LoginLimiterRegistry) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, entry := range r.limiters {
		if entry.lastSeen.Load() < cutoff {
			delete(r.limiters, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked keys.
func (r *LoginLimiterRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

func (r *LoginLimiterRegistry) getOrCreate(key string) *loginLimiterEntry {
	r.mu.RLock()
	entry, exists := r.limiters[key]
	r.mu.RUnlock()

	if exists {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists := r.limiters[key]; exists {
		return entry
	}

	entry = &loginLimiterEntry{
		limiter: rate.NewLimiter(r.limit, r.burst),
	}
	r.limiters[key] = entry
	return entry
}
