// Package connection provides server connectivity for credgate-cli.
package connection

import "fmt"

// Manager tracks the active server connection for the lifetime of a
// CLI invocation or shell session.
type Manager struct {
	current *Connection
}

// Connection describes a CredGate server endpoint.
type Connection struct {
	Name     string
	Server   string
	Token    string
	Insecure bool
}

// NewManager creates a new connection manager.
func NewManager() *Manager {
	return &Manager{}
}

// Connect sets the given connection as current.
func (m *Manager) Connect(conn *Connection) error {
	if conn == nil || conn.Server == "" {
		return fmt.Errorf("server address is required")
	}
	m.current = conn
	return nil
}

// Disconnect clears the current connection.
func (m *Manager) Disconnect() {
	m.current = nil
}

// Current returns the current connection, or nil.
func (m *Manager) Current() *Connection {
	return m.current
}

// IsConnected reports whether a connection is set.
func (m *Manager) IsConnected() bool {
	return m.current != nil
}

// Client builds an HTTP client for the current connection, or nil when
// not connected.
func (m *Manager) Client() *HTTPClient {
	if m.current == nil {
		return nil
	}
	return NewHTTPClient(m.current.Server, m.current.Token, m.current.Insecure)
}
