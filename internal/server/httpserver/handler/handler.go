// Package handler provides HTTP request handlers for CredGate.
//
// This package implements the HTTP API endpoints for authentication,
// session management, token validation, and administrative operations.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
	"github.com/yndnr/credgate/internal/storage"
	"github.com/yndnr/credgate/internal/telemetry/metric"
)

// Config wires the services and infrastructure the handlers depend on.
type Config struct {
	// Auth handles the credential handshake (required).
	Auth *service.AuthService

	// Sessions handles session lifecycle operations (required).
	Sessions *service.SessionService

	// Tokens validates credentials for resource servers (required).
	Tokens *service.TokenService

	// Directory manages user accounts (required).
	Directory *service.DirectoryService

	// Store backs the admin status and backup endpoints. Optional; the
	// backup endpoints degrade gracefully when the engine cannot snapshot.
	Store storage.Store

	// Metrics records login outcomes and session counters. Optional.
	Metrics *metric.Registry

	// Logger for handler diagnostics and the login audit trail.
	Logger *slog.Logger

	// Version is the build version reported by the status endpoint.
	Version string

	// StartedAt anchors the uptime reported by the status endpoint.
	StartedAt time.Time

	// StorageBackend names the active storage backend for status output.
	StorageBackend string

	// Reload triggers a configuration reload. Optional.
	Reload func(ctx context.Context) error
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	authSvc      *service.AuthService
	sessionSvc   *service.SessionService
	tokenSvc     *service.TokenService
	directorySvc *service.DirectoryService
	store        storage.Store
	metrics      *metric.Registry
	logger       *slog.Logger
	version      string
	startedAt    time.Time
	backend      string
	reload       func(ctx context.Context) error
	mux          *http.ServeMux
}

// New creates a new Handler with the given configuration.
func New(cfg *Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	h := &Handler{
		authSvc:      cfg.Auth,
		sessionSvc:   cfg.Sessions,
		tokenSvc:     cfg.Tokens,
		directorySvc: cfg.Directory,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		logger:       logger,
		version:      cfg.Version,
		startedAt:    startedAt,
		backend:      cfg.StorageBackend,
		reload:       cfg.Reload,
		mux:          http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health endpoints (no auth required)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Authentication endpoints
	h.mux.HandleFunc("POST /api/v1/auth/login", h.handleLogin)
	h.mux.HandleFunc("POST /api/v1/auth/logout", h.handleLogout)
	h.mux.HandleFunc("GET /api/v1/auth/whoami", h.handleWhoAmI)
	h.mux.HandleFunc("POST /api/v1/auth/password", h.handleChangePassword)

	// Session endpoints
	h.mux.HandleFunc("GET /api/v1/sessions", h.handleListSessions)
	h.mux.HandleFunc("GET /api/v1/sessions/{id}", h.handleGetSession)
	h.mux.HandleFunc("POST /api/v1/sessions/{id}/touch", h.handleTouchSession)
	h.mux.HandleFunc("POST /api/v1/sessions/{id}/renew", h.handleRenewSession)
	h.mux.HandleFunc("POST /api/v1/sessions/{id}/revoke", h.handleRevokeSession)

	// User session batch operations
	h.mux.HandleFunc("POST /api/v1/users/{user_id}/sessions/revoke", h.handleRevokeUserSessions)

	// Token endpoints
	h.mux.HandleFunc("POST /api/v1/tokens/validate", h.handleValidateToken)

	// Admin endpoints
	h.mux.HandleFunc("GET /admin/v1/status/summary", h.handleAdminStatus)
	h.mux.HandleFunc("POST /admin/v1/gc/trigger", h.handleGCTrigger)

	// User directory management endpoints
	h.mux.HandleFunc("POST /admin/v1/users", h.handleCreateUser)
	h.mux.HandleFunc("GET /admin/v1/users", h.handleListUsers)
	h.mux.HandleFunc("GET /admin/v1/users/{user_id}", h.handleGetUser)
	h.mux.HandleFunc("POST /admin/v1/users/{user_id}/status", h.handleSetUserStatus)
	h.mux.HandleFunc("POST /admin/v1/users/{user_id}/password/reset", h.handleResetPassword)

	// Backup endpoints
	h.mux.HandleFunc("POST /admin/v1/backups/snapshots", h.handleCreateSnapshot)
	h.mux.HandleFunc("GET /admin/v1/backups/snapshots", h.handleListSnapshots)

	// Configuration endpoints
	h.mux.HandleFunc("POST /admin/v1/config/reload", h.handleConfigReload)
}

// ============================================================================
// Identity Context
// ============================================================================

// contextKey is the type for handler context keys.
type contextKey string

// identityKey is the context key for the authenticated caller.
const identityKey contextKey = "identity"

// WithIdentity returns a context carrying the authenticated caller.
// The session-auth middleware attaches the identity before dispatch.
func WithIdentity(ctx context.Context, id *service.AuthContext) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, or nil when the
// request did not pass session authentication.
func IdentityFromContext(ctx context.Context) *service.AuthContext {
	if id, ok := ctx.Value(identityKey).(*service.AuthContext); ok {
		return id
	}
	return nil
}

// requireIdentity returns the authenticated caller or writes a 401.
func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) *service.AuthContext {
	id := IdentityFromContext(r.Context())
	if id == nil || id.User == nil || id.Session == nil {
		h.writeError(w, r, http.StatusUnauthorized, "CG-AUTH-4011", "session token not provided", nil)
		return nil
	}
	return id
}

// requireAdmin returns the authenticated caller if it has the admin
// role, or writes the appropriate error.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) *service.AuthContext {
	id := h.requireIdentity(w, r)
	if id == nil {
		return nil
	}
	if !id.IsAdmin() {
		h.writeError(w, r, http.StatusForbidden, "CG-ADMIN-4030", "admin role required", nil)
		return nil
	}
	return id
}

// ============================================================================
// Response Writing
// ============================================================================

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// getRequestID extracts the request ID set by the middleware.
func getRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return ""
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		status := errorCodeToHTTPStatus(code)
		h.writeError(w, r, status, code, err.Error(), nil)
		return
	}

	// Generic internal error
	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, "CG-SYS-5000", "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
// The numeric suffix of a domain error code mirrors the HTTP status.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"),
		strings.HasSuffix(code, "-4012"), strings.HasSuffix(code, "-4013"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasPrefix(code, "CG-ARG-"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(code, "CG-SYS-5"), strings.HasPrefix(code, "CG-USER-5"):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	// Use net.SplitHostPort to correctly handle IPv6 addresses like [::1]:8080
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
