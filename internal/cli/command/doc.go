// Package command provides CLI command definitions for credgate-cli.
//
// Commands are grouped by concern:
//
//   - auth.go: login, logout, whoami
//   - session.go: session list/get/renew/revoke/revoke-all
//   - user.go: user directory administration
//   - status.go: server status, health, gc
//   - backup.go: storage snapshots
//   - config.go: CLI and server configuration
//   - shell.go: interactive REPL mode
//
// The login session persisted by `login` is picked up automatically by
// every other command, so a logged-in operator never passes a token by
// hand.
package command
