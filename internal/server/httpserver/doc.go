// Package httpserver provides the HTTP/HTTPS server for CredGate.
//
// This package implements the primary external API using stdlib net/http:
//
//   - Auth endpoints: /api/v1/auth/login, /logout, /whoami, /password
//   - Session endpoints: /api/v1/sessions, /api/v1/sessions/{id} and
//     the touch/renew/revoke operations on them
//   - Token endpoints: /api/v1/tokens/validate
//   - Admin endpoints: /admin/v1/*
//   - Health endpoints: /health, /ready, /metrics
//
// Features:
//
//   - TLS support
//   - Middleware chain: SessionAuth, RateLimit, Audit, RequestID
//   - Graceful shutdown with configurable timeout
//   - Prometheus metrics integration
package httpserver
