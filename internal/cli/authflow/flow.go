package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/credgate/internal/cli/connection"
	"github.com/yndnr/credgate/internal/cli/state"
)

// State is the position of the flow in its lifecycle.
type State string

const (
	// StateIdle means the flow is awaiting credentials.
	StateIdle State = "idle"

	// StateSubmitting means a login request is in flight.
	StateSubmitting State = "submitting"

	// StateSuccess means the last submission was accepted.
	StateSuccess State = "success"

	// StateError means the last submission failed. The flow accepts a
	// new submission from this state; the fields stay editable.
	StateError State = "error"
)

// Flow errors.
var (
	// ErrMissingCredentials is returned when username or password is empty.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrSubmissionInFlight is returned when Submit is called while a
	// previous request has not completed.
	ErrSubmissionInFlight = errors.New("a login request is already in flight")

	// ErrLoginFailed is the generic failure users see. Every rejection
	// and transport failure collapses into it so server detail never
	// reaches the form.
	ErrLoginFailed = errors.New("invalid username or password")
)

// FailedError wraps the underlying login failure. Its message is the
// generic one; the cause is reachable through Unwrap for verbose
// diagnostics only.
type FailedError struct {
	cause error
}

func (e *FailedError) Error() string { return ErrLoginFailed.Error() }

func (e *FailedError) Is(target error) bool { return target == ErrLoginFailed }

func (e *FailedError) Unwrap() error { return e.cause }

// Credentials is the username and password pair collected from the
// user. It exists only until the submission resolves.
type Credentials struct {
	Username string
	Password string
}

// Transport performs the login request against the server.
// *connection.HTTPClient satisfies it.
type Transport interface {
	Login(ctx context.Context, username, password, deviceID string) (*connection.LoginResult, error)
}

// SessionStore persists the session client-side. *state.Store
// satisfies it.
type SessionStore interface {
	Save(sess *state.Session) error
}

// Navigator moves the user into the authenticated area after a
// successful login.
type Navigator interface {
	Navigate(ctx context.Context, sess *state.Session) error
}

// Config wires the flow's collaborators.
type Config struct {
	// Transport performs the login request (required).
	Transport Transport

	// Store persists the session on success. Optional.
	Store SessionStore

	// Navigator runs once after a successful login. Optional.
	Navigator Navigator

	// Server is recorded in the persisted session.
	Server string

	// DeviceID is sent with the login request. Optional.
	DeviceID string
}

// Flow drives one credential submission at a time.
type Flow struct {
	cfg Config

	mu      sync.Mutex
	state   State
	lastErr error
}

// New creates a flow in the Idle state.
func New(cfg Config) (*Flow, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("authflow: transport is required")
	}
	return &Flow{cfg: cfg, state: StateIdle}, nil
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastError returns the underlying cause of the last failed
// submission, or nil. Intended for verbose logging, never for direct
// display.
func (f *Flow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Submit performs one login attempt.
//
// The flow moves to Submitting for the duration of the request; a
// concurrent Submit during that window returns ErrSubmissionInFlight
// without issuing a second request. On success the session is saved,
// the navigator runs, and the session is returned. On failure nothing
// is persisted and the returned error reads as the generic login
// failure.
func (f *Flow) Submit(ctx context.Context, creds Credentials) (*state.Session, error) {
	// Presence validation happens before any state transition so an
	// empty form never occupies the submission slot.
	if creds.Username == "" || creds.Password == "" {
		return nil, ErrMissingCredentials
	}

	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	f.state = StateSubmitting
	f.lastErr = nil
	f.mu.Unlock()

	result, err := f.cfg.Transport.Login(ctx, creds.Username, creds.Password, f.cfg.DeviceID)
	if err != nil {
		f.fail(err)
		return nil, &FailedError{cause: err}
	}
	if result.Token == "" {
		// A 2xx response without a token is still a rejection.
		err := errors.New("response contained no token")
		f.fail(err)
		return nil, &FailedError{cause: err}
	}

	sess := &state.Session{
		Server: f.cfg.Server,
		Token:  result.Token,
		User: state.User{
			ID:       result.User.ID,
			Username: result.User.Username,
			Role:     result.User.Role,
		},
		SavedAt: time.Now().UTC(),
	}

	if f.cfg.Store != nil {
		if err := f.cfg.Store.Save(sess); err != nil {
			// The server accepted the credentials but the session could
			// not be kept. This is a local fault, not an authentication
			// failure, and is reported as such.
			f.fail(err)
			return nil, fmt.Errorf("persist session: %w", err)
		}
	}

	f.mu.Lock()
	f.state = StateSuccess
	f.mu.Unlock()

	if f.cfg.Navigator != nil {
		if err := f.cfg.Navigator.Navigate(ctx, sess); err != nil {
			return sess, fmt.Errorf("enter authenticated area: %w", err)
		}
	}

	return sess, nil
}

func (f *Flow) fail(cause error) {
	f.mu.Lock()
	f.state = StateError
	f.lastErr = cause
	f.mu.Unlock()
}
