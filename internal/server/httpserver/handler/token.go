// Package handler provides HTTP request handlers for CredGate.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/yndnr/credgate/internal/core/service"
)

// handleValidateToken handles POST /api/v1/tokens/validate.
//
// Resource servers call this to check credentials presented to them.
// An invalid credential is a normal answer, not an HTTP error: the
// response reports valid=false with the reason.
func (h *Handler) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	var req ValidateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "CG-SYS-4000", "invalid request body", nil)
		return
	}

	if req.Token == "" {
		h.writeError(w, r, http.StatusBadRequest, "CG-ARG-1002", "token is required", nil)
		return
	}

	// Call service
	resp, err := h.tokenSvc.Validate(r.Context(), &service.ValidateTokenRequest{
		Token:     req.Token,
		Touch:     req.Touch,
		ClientIP:  getClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.metrics.RecordValidation(false)
		h.writeJSON(w, r, http.StatusOK, ValidateTokenResponse{
			Valid:   false,
			Message: err.Error(),
		})
		return
	}

	h.metrics.RecordValidation(resp.Valid)
	h.writeJSON(w, r, http.StatusOK, ValidateTokenResponse{
		Valid:     resp.Valid,
		SessionID: resp.Session.ID,
		UserID:    resp.Session.UserID,
		Username:  resp.Session.Username,
		ExpiresAt: time.UnixMilli(resp.Session.ExpiresAt),
	})
}
