// Package localserver provides the Unix socket server for local management.
//
// This package implements a local-only management interface via Unix domain
// socket. It bypasses session authentication for administrative operations
// issued on the same host:
//
//   - Server status (uptime, session count, storage backend)
//   - Graceful shutdown
//   - Configuration reload
//   - Connection draining
//
// Security:
//
//   - Only accessible via Unix domain socket
//   - File system permissions control access
//   - No session credential required (physical/local access only)
package localserver
