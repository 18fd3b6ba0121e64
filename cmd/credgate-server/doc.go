// Package main provides the entry point for credgate-server.
//
// The server is the core CredGate service that provides:
//
//   - HTTP/HTTPS API for login, session, and token validation
//   - Administrative API for the user directory and storage snapshots
//   - Prometheus metrics endpoint
//   - Local Unix socket for management access (no credential required)
//
// Usage:
//
//	credgate-server [flags]
//	credgate-server --config /path/to/config.yaml
//
// The server loads configuration, initializes infrastructure components,
// and starts all configured listeners.
package main
