// Package handler provides HTTP request handlers for CredGate.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
)

// authorizeSession loads a session and verifies the caller may act on
// it. Admins may act on any session; everyone else gets a not-found
// for sessions they do not own, so the API never confirms that a
// foreign session exists.
func (h *Handler) authorizeSession(w http.ResponseWriter, r *http.Request, id *service.AuthContext, sessionID string) *domain.Session {
	session, err := h.sessionSvc.Get(r.Context(), &service.GetSessionRequest{
		SessionID: sessionID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil
	}
	if !id.IsAdmin() && session.UserID != id.User.ID {
		h.writeError(w, r, http.StatusNotFound, "CG-SESS-4040", "session not found", nil)
		return nil
	}
	return session
}

// handleGetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := h.requireIdentity(w, r)
	if id == nil {
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "session_id is required", nil)
		return
	}

	session := h.authorizeSession(w, r, id, sessionID)
	if session == nil {
		return
	}

	h.writeJSON(w, r, http.StatusOK, sessionToResponse(session))
}

// handleListSessions handles GET /api/v1/sessions.
//
// Non-admin callers only ever see their own sessions, whatever filter
// they ask for.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	id := h.requireIdentity(w, r)
	if id == nil {
		return
	}

	// Parse query parameters
	query := r.URL.Query()

	filter := &service.SessionFilter{
		UserID:   query.Get("user_id"),
		DeviceID: query.Get("device_id"),
		Status:   query.Get("status"),
	}
	if !id.IsAdmin() {
		filter.UserID = id.User.ID
	}

	// Parse pagination
	if page := query.Get("page"); page != "" {
		var p int
		if _, err := fmt.Sscanf(page, "%d", &p); err == nil && p > 0 {
			filter.Page = p
		}
	}
	if pageSize := query.Get("page_size"); pageSize != "" {
		var ps int
		if _, err := fmt.Sscanf(pageSize, "%d", &ps); err == nil && ps > 0 {
			filter.PageSize = ps
		}
	}

	// Call service
	resp, err := h.sessionSvc.List(r.Context(), &service.ListSessionsRequest{
		Filter: filter,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	// Convert to response format
	items := make([]SessionResponse, len(resp.Items))
	for i, s := range resp.Items {
		items[i] = sessionToResponse(s)
	}

	h.writeJSON(w, r, http.StatusOK, ListSessionsResponse{
		Items:    items,
		Total:    resp.Total,
		Page:     resp.Page,
		PageSize: resp.PageSize,
	})
}

// handleTouchSession handles POST /api/v1/sessions/{id}/touch.
func (h *Handler) handleTouchSession(w http.ResponseWriter, r *http.Request) {
	id := h.requireIdentity(w, r)
	if id == nil {
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "session_id is required", nil)
		return
	}
	if h.authorizeSession(w, r, id, sessionID) == nil {
		return
	}

	resp, err := h.sessionSvc.Touch(r.Context(), &service.TouchSessionRequest{
		SessionID: sessionID,
		ClientIP:  getClientIP(r),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, TouchSessionResponse{
		LastActive: time.UnixMilli(resp.LastActive),
	})
}

// handleRenewSession handles POST /api/v1/sessions/{id}/renew.
func (h *Handler) handleRenewSession(w http.ResponseWriter, r *http.Request) {
	id := h.requireIdentity(w, r)
	if id == nil {
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "session_id is required", nil)
		return
	}
	if h.authorizeSession(w, r, id, sessionID) == nil {
		return
	}

	// The body is optional; an absent body renews with the default TTL.
	var req RenewSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, "CG-SYS-4000", "invalid request body", nil)
		return
	}

	ttl := 24 * time.Hour // Default
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	// Call service
	resp, err := h.sessionSvc.Renew(r.Context(), &service.RenewSessionRequest{
		SessionID: sessionID,
		TTL:       ttl,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, RenewSessionResponse{
		NewExpiresAt: time.UnixMilli(resp.NewExpiresAt),
	})
}

// handleRevokeSession handles POST /api/v1/sessions/{id}/revoke.
func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	id := h.requireIdentity(w, r)
	if id == nil {
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "session_id is required", nil)
		return
	}
	if h.authorizeSession(w, r, id, sessionID) == nil {
		return
	}

	// Call service
	_, err := h.sessionSvc.Revoke(r.Context(), &service.RevokeSessionRequest{
		SessionID: sessionID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.SessionRevoked(1)
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// handleRevokeUserSessions handles POST /api/v1/users/{user_id}/sessions/revoke.
//
// Admins may revoke any user's sessions; everyone else only their own.
func (h *Handler) handleRevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	id := h.requireIdentity(w, r)
	if id == nil {
		return
	}

	userID := r.PathValue("user_id")
	if userID == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "user_id is required", nil)
		return
	}
	if !id.IsAdmin() && userID != id.User.ID {
		h.writeError(w, r, http.StatusForbidden, "CG-AUTH-4030", "permission denied", nil)
		return
	}

	// Call service
	resp, err := h.sessionSvc.RevokeByUser(r.Context(), &service.RevokeByUserRequest{
		UserID: userID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.SessionRevoked(resp.RevokedCount)
	h.logger.Info("user sessions revoked",
		"target_user_id", userID,
		"revoked_by", id.User.Username,
		"count", resp.RevokedCount)

	h.writeJSON(w, r, http.StatusOK, RevokeUserSessionsResponse{
		RevokedCount: resp.RevokedCount,
	})
}

// sessionToResponse converts a domain.Session to a SessionResponse.
func sessionToResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		UserID:       s.UserID,
		Username:     s.Username,
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
		DeviceID:     s.DeviceID,
		CreatedBy:    s.CreatedBy,
		CreatedAt:    time.UnixMilli(s.CreatedAt),
		ExpiresAt:    time.UnixMilli(s.ExpiresAt),
		LastActive:   time.UnixMilli(s.LastActive),
		LastAccessIP: s.LastAccessIP,
		Data:         s.Data,
	}
}
