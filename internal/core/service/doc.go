// Package service provides domain services for CredGate.
//
// Domain services contain pure business logic and orchestrate operations
// on domain models. They define interfaces for storage dependencies,
// allowing for dependency injection and testability.
//
// This package contains:
//
//   - AuthService: credential login, logout and password change
//   - SessionService: session CRUD operations and lifecycle management
//   - TokenService: session credential issuance and validation
//   - DirectoryService: user directory management
//
// Services are stateless and thread-safe, designed for high-concurrency
// scenarios with proper lockout and rate limiting support.
package service
