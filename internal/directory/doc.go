// Package directory selects and opens the user directory backend.
//
// The directory holds the accounts that CredGate authenticates against.
// Three backends are available:
//
//   - memory: map-backed, for tests and single-process dev setups
//   - file: YAML users file with hot reload and atomic write-back
//   - postgres: pgx-backed relational storage with schema bootstrap
//
// All backends implement service.UserRepository; the server picks one
// from the directory.backend configuration key.
package directory
