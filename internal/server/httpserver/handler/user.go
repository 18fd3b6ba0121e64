// Package handler provides HTTP request handlers for CredGate.
//
// This file contains the admin user directory endpoints: account
// creation, lookup, listing, status changes, and password resets.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
)

// handleCreateUser handles POST /admin/v1/users.
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	id := h.requireAdmin(w, r)
	if id == nil {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "CG-SYS-4000", "invalid request body", nil)
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "username and password are required", nil)
		return
	}

	resp, err := h.directorySvc.CreateUser(r.Context(), &service.CreateUserRequest{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Allowlist:   req.Allowlist,
		CreatedBy:   id.User.ID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user created",
		"username", resp.User.Username,
		"user_id", resp.User.ID,
		"role", resp.User.Role,
		"created_by", id.User.Username)

	h.writeJSON(w, r, http.StatusCreated, userToResponse(resp.User))
}

// handleListUsers handles GET /admin/v1/users.
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	query := r.URL.Query()
	resp, err := h.directorySvc.ListUsers(r.Context(), &service.ListUsersRequest{
		Role:   query.Get("role"),
		Status: query.Get("status"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	users := make([]UserResponse, len(resp.Users))
	for i, u := range resp.Users {
		users[i] = *userToResponse(u)
	}

	h.writeJSON(w, r, http.StatusOK, ListUsersResponse{Users: users})
}

// handleGetUser handles GET /admin/v1/users/{user_id}.
//
// The path segment is either an account ID or a username; IDs carry
// the cgus- prefix, so the two never collide.
func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	key := r.PathValue("user_id")
	if key == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "user_id is required", nil)
		return
	}

	req := &service.GetUserRequest{}
	if strings.HasPrefix(key, "cgus-") {
		req.UserID = key
	} else {
		req.Username = key
	}

	user, err := h.directorySvc.GetUser(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, userToResponse(user))
}

// handleSetUserStatus handles POST /admin/v1/users/{user_id}/status.
func (h *Handler) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	id := h.requireAdmin(w, r)
	if id == nil {
		return
	}

	userID := r.PathValue("user_id")
	if userID == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "user_id is required", nil)
		return
	}

	var req SetUserStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "CG-SYS-4000", "invalid request body", nil)
		return
	}
	if req.Status == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "status is required", nil)
		return
	}

	resp, err := h.directorySvc.SetUserStatus(r.Context(), &service.SetUserStatusRequest{
		UserID: userID,
		Status: domain.UserStatus(req.Status),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.SessionRevoked(resp.RevokedSessions)
	h.logger.Info("user status changed",
		"user_id", userID,
		"status", req.Status,
		"revoked_sessions", resp.RevokedSessions,
		"changed_by", id.User.Username)

	h.writeJSON(w, r, http.StatusOK, SetUserStatusResponse{
		User:            userToResponse(resp.User),
		RevokedSessions: resp.RevokedSessions,
	})
}

// handleResetPassword handles POST /admin/v1/users/{user_id}/password/reset.
func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id := h.requireAdmin(w, r)
	if id == nil {
		return
	}

	userID := r.PathValue("user_id")
	if userID == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "user_id is required", nil)
		return
	}

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "CG-SYS-4000", "invalid request body", nil)
		return
	}
	if req.NewPassword == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "new_password is required", nil)
		return
	}

	resp, err := h.directorySvc.ResetPassword(r.Context(), &service.ResetPasswordRequest{
		UserID:      userID,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.SessionRevoked(resp.RevokedSessions)
	h.logger.Info("password reset",
		"user_id", userID,
		"revoked_sessions", resp.RevokedSessions,
		"reset_by", id.User.Username)

	h.writeJSON(w, r, http.StatusOK, ResetPasswordResponse{
		RevokedSessions: resp.RevokedSessions,
	})
}

// userToResponse converts a sanitized account view to a UserResponse.
func userToResponse(u *service.UserInfo) *UserResponse {
	resp := &UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Status:      u.Status,
		Locked:      u.Locked,
		LastLoginIP: u.LastLoginIP,
		CreatedAt:   time.UnixMilli(u.CreatedAt),
		UpdatedAt:   time.UnixMilli(u.UpdatedAt),
		CreatedBy:   u.CreatedBy,
	}
	if u.LastLogin > 0 {
		resp.LastLogin = time.UnixMilli(u.LastLogin)
	}
	return resp
}
