// Package handler provides HTTP request handlers for CredGate.
//
// This package contains handlers for all HTTP endpoints:
//
//   - auth.go: Login, logout, identity, and password change
//   - session.go: Session inspection and revocation
//   - token.go: Token validation for resource servers
//   - user.go: Administrative user directory management
//   - admin.go: Status, GC, backups, and config reload
//   - health.go: Health and readiness checks
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate request
//   - Call domain service
//   - Format and return response
//   - Handle errors with appropriate HTTP status codes
//
// Handlers that act on the caller's own resources read the
// authenticated identity placed in the request context by the
// session-auth middleware.
package handler
