// Package main provides the entry point for credgate-cli.
//
// The CLI tool provides command-line access to a CredGate server for:
//
//   - Logging in and out (the saved session backs every other command)
//   - Session management (list, get, renew, revoke)
//   - User directory administration
//   - Backup and restore operations
//   - Server status and configuration
//
// Usage:
//
//	credgate-cli [command] [flags]
//	credgate-cli login admin
//	credgate-cli session list --output json
//
// The CLI supports both single-command mode and interactive shell mode.
package main
