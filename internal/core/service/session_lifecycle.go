// Package service provides domain services for CredGate.
//
// This file contains session lifecycle operations: Renew, Touch,
// Revoke, RevokeByUser, and GC.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
)

// ============================================================================
// Session Lifecycle Operations
// ============================================================================

// RenewSessionRequest contains parameters for session renewal.
type RenewSessionRequest struct {
	SessionID string
	TTL       time.Duration
}

// RenewSessionResponse contains the result of session renewal.
type RenewSessionResponse struct {
	NewExpiresAt int64
}

// Renew extends the expiration time of a session.
func (s *SessionService) Renew(ctx context.Context, req *RenewSessionRequest) (*RenewSessionResponse, error) {
	// 1. Validate input
	if req.SessionID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("session_id is required")
	}
	if req.TTL <= 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("ttl must be positive")
	}

	// 2. Get session
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

	// 4. Update expiration and last active
	oldVersion := session.Version
	session.SetExpiration(s.clampTTL(req.TTL))
	session.LastActive = time.Now().UnixMilli()
	session.IncrVersion()

	// 5. Persist with optimistic locking
	if err := s.repo.Update(ctx, session, oldVersion); err != nil {
		return nil, domain.ErrSessionVersionConflict.WithCause(err)
	}

	return &RenewSessionResponse{
		NewExpiresAt: session.ExpiresAt,
	}, nil
}

// TouchSessionRequest contains parameters for session touch operation.
type TouchSessionRequest struct {
	SessionID string
	ClientIP  string // Optional: update last access IP
}

// TouchSessionResponse contains the result of session touch.
type TouchSessionResponse struct {
	LastActive int64 // Updated last_active timestamp in milliseconds
}

// Touch updates the last_active timestamp of a session.
// This is a lightweight operation that doesn't extend the session TTL.
func (s *SessionService) Touch(ctx context.Context, req *TouchSessionRequest) (*TouchSessionResponse, error) {
	// 1. Validate input
	if req.SessionID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("session_id is required")
	}

	// 2. Get current session
	session, err := s.repo.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	// 3. Check if session is still valid
	if session.IsExpired() {
		return nil, domain.ErrSessionExpired.WithDetails(fmt.Sprintf("session %s has expired", req.SessionID))
	}

	// 4. Update last_active and optionally last_access_ip
	now := time.Now().UnixMilli()
	oldVersion := session.Version
	session.LastActive = now
	if req.ClientIP != "" {
		session.LastAccessIP = req.ClientIP
	}
	session.IncrVersion()

	// 5. Save with optimistic locking, retrying once on version conflict
	if err := s.repo.Update(ctx, session, oldVersion); err != nil {
		if domain.IsDomainError(err, "CG-SESS-4091") {
			session, err = s.repo.Get(ctx, req.SessionID)
			if err != nil {
				return nil, err
			}
			// Reapply changes with correct version
			oldVersion = session.Version
			session.LastActive = now
			if req.ClientIP != "" {
				session.LastAccessIP = req.ClientIP
			}
			session.IncrVersion()
			if err := s.repo.Update(ctx, session, oldVersion); err != nil {
				return nil, domain.ErrStorageError.WithCause(err)
			}
		} else {
			return nil, domain.ErrStorageError.WithCause(err)
		}
	}

	return &TouchSessionResponse{
		LastActive: session.LastActive,
	}, nil
}

// RevokeSessionRequest contains parameters for session revocation.
type RevokeSessionRequest struct {
	SessionID string
}

// RevokeSessionResponse contains the result of session revocation.
type RevokeSessionResponse struct {
	Success bool
}

// Revoke revokes (deletes) a session.
//
// Revocation is idempotent: revoking an already absent session succeeds.
func (s *SessionService) Revoke(ctx context.Context, req *RevokeSessionRequest) (*RevokeSessionResponse, error) {
	// 1. Validate input
	if req.SessionID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("session_id is required")
	}

	// 2. Delete from storage
	if err := s.repo.Delete(ctx, req.SessionID); err != nil {
		// Treat "not found" as success (idempotent)
		if domain.IsDomainError(err, "CG-SESS-4040") {
			return &RevokeSessionResponse{Success: true}, nil
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return &RevokeSessionResponse{Success: true}, nil
}

// RevokeByUserRequest contains parameters for batch user session revocation.
type RevokeByUserRequest struct {
	UserID string
}

// RevokeByUserResponse contains the result of batch revocation.
type RevokeByUserResponse struct {
	RevokedCount int
}

// RevokeByUser revokes all sessions for a user.
func (s *SessionService) RevokeByUser(ctx context.Context, req *RevokeByUserRequest) (*RevokeByUserResponse, error) {
	// 1. Validate input
	if req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}

	// 2. Get all user sessions
	sessions, err := s.repo.ListByUserID(ctx, req.UserID)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	// 3. Check batch limit (max 1000 sessions)
	if len(sessions) > 1000 {
		return nil, domain.ErrSessionQuotaExceeded.WithDetails(
			fmt.Sprintf("user has %d sessions, batch revoke limit is 1000", len(sessions)),
		)
	}

	// 4. Batch delete
	count, err := s.repo.DeleteByUserID(ctx, req.UserID)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	return &RevokeByUserResponse{
		RevokedCount: count,
	}, nil
}

// GC performs garbage collection on expired sessions.
// This should be called periodically by a background task.
func (s *SessionService) GC(ctx context.Context) (int, error) {
	count, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(err)
	}
	return count, nil
}
