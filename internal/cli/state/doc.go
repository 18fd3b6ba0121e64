// Package state persists the CLI's login session under ~/.credgate.
//
// Layout:
//
//   - session.yaml: server address, bearer token, and user profile from
//     the last successful login (mode 0600)
//   - device_id: stable machine identifier sent with login requests,
//     generated once and kept across logouts
//
// A session file is only written after the server has accepted a login;
// a failed or partial login never leaves state on disk. Writes are
// atomic (temp file plus rename) so a crash mid-save cannot corrupt an
// existing session.
package state
