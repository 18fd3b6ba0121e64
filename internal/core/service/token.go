// Package service provides domain services for CredGate.
//
// TokenService issues the session credential returned by a successful
// login and validates credentials presented on later requests.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yndnr/credgate/internal/core/domain"
)

// TokenRepository defines the storage interface for token operations.
type TokenRepository interface {
	// GetSessionByTokenHash retrieves a session by its token hash.
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)

	// GetSession retrieves a session by ID (used for JWT validation).
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// UpdateSession updates a session (used for touch operations).
	UpdateSession(ctx context.Context, session *domain.Session) error
}

// TokenFormat selects the wire format of issued session credentials.
type TokenFormat string

const (
	// TokenFormatOpaque issues random bearer tokens (cgtk_...) whose hash
	// is stored on the session. This is the default.
	TokenFormatOpaque TokenFormat = "opaque"

	// TokenFormatJWT issues signed JWTs bound to the session ID. Revocation
	// still works because validation always resolves the backing session.
	TokenFormatJWT TokenFormat = "jwt"
)

// IsValidTokenFormat checks if a string is a supported token format.
func IsValidTokenFormat(f string) bool {
	switch TokenFormat(f) {
	case TokenFormatOpaque, TokenFormatJWT:
		return true
	}
	return false
}

// TokenServiceConfig holds configuration for TokenService.
type TokenServiceConfig struct {
	// Format is the credential format to issue (default: opaque).
	Format TokenFormat

	// SigningKey is the HMAC key for JWT credentials (required for jwt format).
	SigningKey []byte

	// Issuer is the "iss" claim of issued JWTs.
	Issuer string

	// Audience is the "aud" claim of issued JWTs.
	Audience string
}

// DefaultTokenServiceConfig returns default configuration.
func DefaultTokenServiceConfig() *TokenServiceConfig {
	return &TokenServiceConfig{
		Format: TokenFormatOpaque,
		Issuer: "credgate",
	}
}

// TokenService issues and validates session credentials.
type TokenService struct {
	repo       TokenRepository
	format     TokenFormat
	signingKey []byte
	issuer     string
	audience   string
	parser     *jwt.Parser
}

// NewTokenService creates a new TokenService with the given repository and config.
func NewTokenService(repo TokenRepository, config *TokenServiceConfig) *TokenService {
	if config == nil {
		config = DefaultTokenServiceConfig()
	}
	if config.Format == "" {
		config.Format = TokenFormatOpaque
	}
	if config.Issuer == "" {
		config.Issuer = "credgate"
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.Issuer),
		jwt.WithExpirationRequired(),
	}
	if config.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(config.Audience))
	}

	return &TokenService{
		repo:       repo,
		format:     config.Format,
		signingKey: config.SigningKey,
		issuer:     config.Issuer,
		audience:   config.Audience,
		parser:     jwt.NewParser(parserOpts...),
	}
}

// Format returns the configured credential format.
func (s *TokenService) Format() TokenFormat {
	return s.format
}

// GenerateToken generates a new cryptographically secure opaque token.
// Returns the plaintext token (cgtk_...) and its hash (cgth_...).
//
// IMPORTANT: The plaintext token is only returned to the client once
// during login. Never store or log the plaintext token.
func (s *TokenService) GenerateToken() (plaintext string, hash string, err error) {
	return domain.GenerateToken()
}

// ComputeTokenHash computes the SHA-256 hash of a token.
// Returns the hash in format: cgth_{hex_sha256} (69 characters total).
func (s *TokenService) ComputeTokenHash(token string) string {
	return domain.HashToken(token)
}

// ============================================================================
// Credential Issuance
// ============================================================================

// SessionClaims are the JWT claims carried by credentials issued in
// "jwt" format. The session ID binds the token to a revocable session.
type SessionClaims struct {
	jwt.RegisteredClaims

	// SessionID identifies the backing session.
	SessionID string `json:"sid"`

	// Username is the login name at authentication time.
	Username string `json:"preferred_username,omitempty"`

	// Role is the user role at authentication time.
	Role string `json:"role,omitempty"`
}

// IssueTokenRequest contains parameters for credential issuance.
type IssueTokenRequest struct {
	// Session is the freshly created session (required).
	Session *domain.Session

	// OpaqueToken is the plaintext token generated at session creation.
	// Required for the opaque format.
	OpaqueToken string

	// Username and Role enrich JWT claims (optional).
	Username string
	Role     string
}

// IssueTokenResponse contains the issued credential.
type IssueTokenResponse struct {
	// Credential is the string handed to the client.
	Credential string

	// ExpiresAt is the credential expiry (Unix MS), aligned with the session.
	ExpiresAt int64
}

// Issue returns the credential string for a freshly created session.
//
// For opaque format this is the plaintext token whose hash is already
// stored on the session. For jwt format a signed token is minted with
// the session ID as the "sid" claim.
func (s *TokenService) Issue(req *IssueTokenRequest) (*IssueTokenResponse, error) {
	if req.Session == nil {
		return nil, domain.ErrMissingArgument.WithDetails("session is required")
	}

	switch s.format {
	case TokenFormatOpaque:
		if req.OpaqueToken == "" {
			return nil, domain.ErrMissingArgument.WithDetails("opaque token is required")
		}
		return &IssueTokenResponse{
			Credential: req.OpaqueToken,
			ExpiresAt:  req.Session.ExpiresAt,
		}, nil

	case TokenFormatJWT:
		if len(s.signingKey) == 0 {
			return nil, domain.ErrInternalServer.WithDetails("jwt signing key not configured")
		}

		now := time.Now()
		claims := &SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    s.issuer,
				Subject:   req.Session.UserID,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(time.UnixMilli(req.Session.ExpiresAt)),
				ID:        req.Session.ID,
			},
			SessionID: req.Session.ID,
			Username:  req.Username,
			Role:      req.Role,
		}
		if s.audience != "" {
			claims.Audience = jwt.ClaimStrings{s.audience}
		}

		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
		if err != nil {
			return nil, domain.ErrInternalServer.WithCause(err)
		}

		return &IssueTokenResponse{
			Credential: signed,
			ExpiresAt:  req.Session.ExpiresAt,
		}, nil

	default:
		return nil, domain.ErrInternalServer.WithDetails("unknown token format: " + string(s.format))
	}
}

// ============================================================================
// Credential Validation
// ============================================================================

// ValidateTokenRequest contains parameters for credential validation.
type ValidateTokenRequest struct {
	Token     string // The credential to validate
	Touch     bool   // Whether to update last_active timestamp
	ClientIP  string // Client IP for touch (optional)
	UserAgent string // User Agent for touch (optional)
}

// ValidateTokenResponse contains the result of credential validation.
type ValidateTokenResponse struct {
	Valid   bool            // Whether the credential is valid
	Session *domain.Session // The associated session (only if Valid=true)
}

// Validate validates a credential and optionally updates the session's
// last access info. Returns the associated session if valid.
//
// Both formats are accepted regardless of the configured issue format:
// credentials starting with cgtk_ take the opaque path, everything else
// is treated as a JWT.
func (s *TokenService) Validate(ctx context.Context, req *ValidateTokenRequest) (*ValidateTokenResponse, error) {
	if req.Token == "" {
		return &ValidateTokenResponse{Valid: false}, domain.ErrTokenNotProvided
	}

	var session *domain.Session
	var err error

	if strings.HasPrefix(req.Token, domain.TokenPrefix) {
		session, err = s.resolveOpaque(ctx, req.Token)
	} else {
		session, err = s.resolveJWT(ctx, req.Token)
	}
	if err != nil {
		return &ValidateTokenResponse{Valid: false}, err
	}

	// Check if session is expired
	if session.IsExpired() {
		return &ValidateTokenResponse{Valid: false}, domain.ErrSessionExpired
	}

	// Check if session is deleted
	if session.IsDeleted {
		return &ValidateTokenResponse{Valid: false}, domain.ErrSessionNotFound
	}

	// Optionally touch the session (best-effort, validation does not fail
	// on update errors)
	if req.Touch {
		session.Touch(req.ClientIP, req.UserAgent)
		session.IncrVersion()
		_ = s.repo.UpdateSession(ctx, session)
	}

	return &ValidateTokenResponse{
		Valid:   true,
		Session: session,
	}, nil
}

// resolveOpaque resolves an opaque token to its session via the hash index.
func (s *TokenService) resolveOpaque(ctx context.Context, token string) (*domain.Session, error) {
	// 1. Validate token format
	if !domain.ValidateTokenFormat(token) {
		return nil, domain.ErrTokenMalformed
	}

	// 2. Compute token hash
	tokenHash := s.ComputeTokenHash(token)

	// 3. Lookup session by token hash
	session, err := s.repo.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, domain.ErrTokenInvalid.WithCause(err)
	}

	return session, nil
}

// resolveJWT verifies a signed credential and resolves its backing session.
func (s *TokenService) resolveJWT(ctx context.Context, token string) (*domain.Session, error) {
	if len(s.signingKey) == 0 {
		// Server not configured for JWTs; anything that is not an opaque
		// token is malformed.
		return nil, domain.ErrTokenMalformed
	}

	// 1. Parse and verify the signature and registered claims
	claims := &SessionClaims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, domain.ErrTokenMalformed.WithCause(err)
		default:
			return nil, domain.ErrTokenInvalid.WithCause(err)
		}
	}

	// 2. The sid claim must reference a valid session ID
	sessionID := domain.NormalizeSessionID(claims.SessionID)
	if sessionID == "" {
		return nil, domain.ErrTokenMalformed.WithDetails("missing or invalid sid claim")
	}

	// 3. Resolve the backing session. The signature proves the token was
	// issued here, so a missing session means it has been revoked.
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, domain.ErrTokenRevoked.WithCause(err)
	}

	return session, nil
}

// VerifyTokenHash verifies a token against its expected hash using
// constant-time comparison.
func (s *TokenService) VerifyTokenHash(token, expectedHash string) bool {
	actualHash := s.ComputeTokenHash(token)
	return subtle.ConstantTimeCompare([]byte(actualHash), []byte(expectedHash)) == 1
}
