// Package handler provides HTTP request handlers for CredGate.
//
// This file contains the authentication endpoints: login, logout,
// whoami, and password change.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
	"github.com/yndnr/credgate/internal/telemetry/metric"
)

// handleLogin handles POST /api/v1/auth/login.
//
// Authentication failures collapse into a single 401 response so the
// endpoint never reveals whether the username exists, the password was
// wrong, or the account is locked or disabled. Only malformed requests
// and rate limiting are reported distinctly.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	// 1. Parse request body
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "CG-SYS-4000", "invalid request body", nil)
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "username and password are required", nil)
		return
	}

	// 2. Authenticate
	clientIP := getClientIP(r)
	resp, err := h.authSvc.Login(r.Context(), &service.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		DeviceID:  req.DeviceID,
		ClientIP:  clientIP,
		UserAgent: r.UserAgent(),
	})

	h.metrics.RecordLogin(loginResult(err))

	// 3. Map failures without leaking account state. The audit trail
	// records the real reason; the response does not.
	if err != nil {
		h.logger.Info("login rejected",
			"username", req.Username,
			"client_ip", clientIP,
			"error", err)
		switch {
		case errors.Is(err, domain.ErrCredentialValidation):
			h.writeError(w, r, http.StatusBadRequest, "CG-AUTH-4001", err.Error(), nil)
		case errors.Is(err, domain.ErrLoginRateLimited):
			w.Header().Set("Retry-After", "60")
			h.writeError(w, r, http.StatusTooManyRequests, "CG-AUTH-4290", "too many login attempts", nil)
		default:
			h.writeError(w, r, http.StatusUnauthorized, "CG-AUTH-4010", "invalid username or password", nil)
		}
		return
	}

	h.logger.Info("login accepted",
		"username", req.Username,
		"user_id", resp.User.ID,
		"session_id", resp.SessionID,
		"client_ip", clientIP)

	// 4. Return the credential (shown exactly once)
	h.writeJSON(w, r, http.StatusOK, &LoginResponse{
		Token:     resp.Token,
		TokenType: "Bearer",
		SessionID: resp.SessionID,
		ExpiresAt: time.UnixMilli(resp.ExpiresAt),
		User:      userToResponse(resp.User),
	})
}

// loginResult maps a login outcome to its metric label.
func loginResult(err error) string {
	switch {
	case err == nil:
		return metric.LoginResultSuccess
	case errors.Is(err, domain.ErrLoginRateLimited):
		return metric.LoginResultRateLimited
	case errors.Is(err, domain.ErrUserLocked):
		return metric.LoginResultLocked
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUserDisabled),
		errors.Is(err, domain.ErrIPNotAllowed):
		return metric.LoginResultInvalidCredentials
	default:
		return metric.LoginResultError
	}
}

// handleLogout handles POST /api/v1/auth/logout.
//
// The session revoked is always the caller's own, taken from the
// authenticated identity rather than the request body.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := h.requireIdentity(w, r)
	if id == nil {
		return
	}

	if _, err := h.authSvc.Logout(r.Context(), &service.LogoutRequest{SessionID: id.Session.ID}); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.SessionRevoked(1)
	h.logger.Info("logout",
		"username", id.User.Username,
		"session_id", id.Session.ID)

	h.writeJSON(w, r, http.StatusOK, nil)
}

// handleWhoAmI handles GET /api/v1/auth/whoami.
//
// The session-auth middleware already resolved the caller, so this
// endpoint renders the identity from the request context without
// another storage round trip.
func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	id := h.requireIdentity(w, r)
	if id == nil {
		return
	}

	sess := sessionToResponse(id.Session)
	h.writeJSON(w, r, http.StatusOK, &WhoAmIResponse{
		User:    userToResponse(service.NewUserInfo(id.User)),
		Session: &sess,
	})
}

// handleChangePassword handles POST /api/v1/auth/password.
func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id := h.requireIdentity(w, r)
	if id == nil {
		return
	}

	// 1. Parse request body
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "CG-SYS-4000", "invalid request body", nil)
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "old_password and new_password are required", nil)
		return
	}

	// 2. Change the password, keeping the caller's current session when
	// other sessions are revoked
	resp, err := h.authSvc.ChangePassword(r.Context(), &service.ChangePasswordRequest{
		UserID:              id.User.ID,
		OldPassword:         req.OldPassword,
		NewPassword:         req.NewPassword,
		RevokeOtherSessions: req.RevokeOtherSessions,
		KeepSessionID:       id.Session.ID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.SessionRevoked(resp.RevokedSessions)
	h.logger.Info("password changed",
		"username", id.User.Username,
		"revoked_sessions", resp.RevokedSessions)

	h.writeJSON(w, r, http.StatusOK, &ChangePasswordResponse{
		RevokedSessions: resp.RevokedSessions,
	})
}
