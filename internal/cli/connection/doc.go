// Package connection provides server connectivity for credgate-cli.
//
// It contains the two transports the CLI speaks:
//
//   - http.go: HTTP(S) client with bearer-token auth, envelope
//     decoding, and the login call
//   - socket.go: Unix-socket client for the local management commands
//   - manager.go: the active connection for a shell session
//
// Every HTTP response from the server arrives wrapped in a JSON
// envelope (code, message, request_id, data); ParseResponse unwraps it
// and surfaces non-2xx envelopes as *APIError. Login failures are
// classified as NETWORK_FAILURE or AUTHENTICATION_FAILED so callers
// can log the detail while showing a generic message.
package connection
