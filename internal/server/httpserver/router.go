// Package httpserver provides the HTTP/HTTPS server for CredGate.
package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/credgate/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler configures the request handlers and their services.
	Handler *handler.Config

	// Logger for request logging.
	Logger *slog.Logger

	// AdminAllowList is the IP/CIDR allowlist for admin API (empty = no restriction).
	AdminAllowList []string

	// MetricsAllowList is the IP/CIDR allowlist for /metrics (empty = no restriction).
	MetricsAllowList []string

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// GlobalRateLimit is the global rate limit per IP (requests/second).
	GlobalRateLimit int

	// LoginRatePerMinute caps login attempts per client IP.
	LoginRatePerMinute int

	// LoginBurst is the burst allowance for the login limiter.
	LoginBurst int

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		GlobalRateLimit:    1000, // 1000 requests/second per IP
		LoginRatePerMinute: 30,
		LoginBurst:         10,
		EnableAudit:        true,
	}
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
//
// Four route groups share one handler behind different middleware chains:
// health endpoints run nearly bare, login runs without session auth but
// behind a tight per-IP limiter, the session-scoped API requires a bearer
// credential, and the admin API additionally requires the admin role plus
// an optional source-address allowlist.
func NewRouter(cfg *RouterConfig) http.Handler {
	// Create handler with services
	h := handler.New(cfg.Handler)

	middlewareCfg := &MiddlewareConfig{
		AuthService: cfg.Handler.Auth,
		Logger:      cfg.Logger,
		EnableAudit: cfg.EnableAudit,
	}

	// Shared head of every chain. Metrics tolerates a nil registry.
	base := func() []Middleware {
		ms := []Middleware{
			RequestID(),
			Metrics(cfg.Handler.Metrics),
		}
		if cfg.EnableAudit {
			ms = append(ms, Audit(cfg.Logger))
		}
		ms = append(ms, Recover(cfg.Logger))
		return ms
	}

	// Health endpoints - no authentication required
	healthHandler := Chain(h, RequestID(), Recover(cfg.Logger))

	// Login endpoint - anonymous by nature, throttled per source IP
	loginMiddlewares := base()
	loginMiddlewares = append(loginMiddlewares, CORS(cfg.CORSAllowedOrigins))
	if cfg.GlobalRateLimit > 0 {
		loginMiddlewares = append(loginMiddlewares, RateLimit(cfg.GlobalRateLimit))
	}
	if cfg.LoginRatePerMinute > 0 {
		loginMiddlewares = append(loginMiddlewares, LoginRateLimit(cfg.LoginRatePerMinute, cfg.LoginBurst))
	}
	loginHandler := Chain(h, loginMiddlewares...)

	// Session-scoped API - requires a valid bearer credential
	businessMiddlewares := base()
	businessMiddlewares = append(businessMiddlewares, CORS(cfg.CORSAllowedOrigins))
	if cfg.GlobalRateLimit > 0 {
		businessMiddlewares = append(businessMiddlewares, RateLimit(cfg.GlobalRateLimit))
	}
	businessMiddlewares = append(businessMiddlewares, SessionAuth(middlewareCfg))
	businessHandler := Chain(h, businessMiddlewares...)

	// Admin API - requires admin role + optional network ACL
	adminMiddlewares := base()
	if len(cfg.AdminAllowList) > 0 {
		adminMiddlewares = append(adminMiddlewares, NetworkACL(&NetworkACLConfig{
			AllowList: cfg.AdminAllowList,
			Logger:    cfg.Logger,
		}))
	}
	adminMiddlewares = append(adminMiddlewares,
		SessionAuth(middlewareCfg),
		AdminAuth(middlewareCfg),
	)
	adminHandler := Chain(h, adminMiddlewares...)

	// Create the top-level mux for routing
	mux := http.NewServeMux()

	mux.Handle("GET /health", healthHandler)
	mux.Handle("GET /ready", healthHandler)

	// Metrics endpoint - optional network ACL, no session auth
	if cfg.Handler.Metrics != nil {
		metricsHandler := cfg.Handler.Metrics.Handler()
		if len(cfg.MetricsAllowList) > 0 {
			metricsHandler = NetworkACL(&NetworkACLConfig{
				AllowList: cfg.MetricsAllowList,
				Logger:    cfg.Logger,
			})(metricsHandler)
		}
		mux.Handle("GET /metrics", metricsHandler)
	}

	// Authentication endpoints
	mux.Handle("POST /api/v1/auth/login", loginHandler)
	mux.Handle("POST /api/v1/auth/logout", businessHandler)
	mux.Handle("GET /api/v1/auth/whoami", businessHandler)
	mux.Handle("POST /api/v1/auth/password", businessHandler)

	// Session endpoints
	mux.Handle("GET /api/v1/sessions", businessHandler)
	mux.Handle("GET /api/v1/sessions/{id}", businessHandler)
	mux.Handle("POST /api/v1/sessions/{id}/touch", businessHandler)
	mux.Handle("POST /api/v1/sessions/{id}/renew", businessHandler)
	mux.Handle("POST /api/v1/sessions/{id}/revoke", businessHandler)

	// User session operations
	mux.Handle("POST /api/v1/users/{user_id}/sessions/revoke", businessHandler)

	// Token endpoints
	mux.Handle("POST /api/v1/tokens/validate", businessHandler)

	// Admin status endpoints
	mux.Handle("GET /admin/v1/status/summary", adminHandler)
	mux.Handle("POST /admin/v1/gc/trigger", adminHandler)

	// User directory management endpoints
	mux.Handle("POST /admin/v1/users", adminHandler)
	mux.Handle("GET /admin/v1/users", adminHandler)
	mux.Handle("GET /admin/v1/users/{user_id}", adminHandler)
	mux.Handle("POST /admin/v1/users/{user_id}/status", adminHandler)
	mux.Handle("POST /admin/v1/users/{user_id}/password/reset", adminHandler)

	// Backup endpoints (admin only)
	mux.Handle("POST /admin/v1/backups/snapshots", adminHandler)
	mux.Handle("GET /admin/v1/backups/snapshots", adminHandler)

	// Configuration endpoints (admin only)
	mux.Handle("POST /admin/v1/config/reload", adminHandler)

	return mux
}
