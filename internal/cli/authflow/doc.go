// Package authflow implements the interactive login flow for
// credgate-cli.
//
// The flow is a small state machine around a single login request:
//
//	Idle -> Submitting -> Success
//	                   -> Error -> (Idle)
//
// While a request is in flight the flow rejects further submissions,
// so a double invocation never issues two concurrent requests. The
// client-side session file is written only after the server accepted
// the credentials, and the navigator runs exactly once per successful
// login.
package authflow
