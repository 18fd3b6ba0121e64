// Package domain defines the core domain models for CredGate.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - User: Directory account with credential hash and role
//   - Session: Authenticated session entity with lifecycle management
//   - Token: Session token generation and hashing
//   - Errors: Domain-specific error definitions
//
// All domain models implement validation, serialization, and
// version control for optimistic locking.
package domain
