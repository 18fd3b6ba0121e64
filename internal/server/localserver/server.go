// Package localserver provides the local management server.
//
// It listens on a Unix Domain Socket (UDS), providing local management
// access without requiring session authentication.
package localserver

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// connTimeout bounds how long one management connection may take.
const connTimeout = 30 * time.Second

// Server represents the local management server.
type Server struct {
	listener net.Listener
	path     string
	handler  *Handler
	running  atomic.Bool
	wg       sync.WaitGroup
}

// New creates a new local server.
func New(socketPath string, handler *Handler) *Server {
	if handler == nil {
		handler = NewHandler(nil)
	}
	return &Server{
		path:    socketPath,
		handler: handler,
	}
}

// ListenAndServe starts the local server.
func (s *Server) ListenAndServe() error {
	// Remove a stale socket left behind by an unclean exit.
	if _, err := os.Stat(s.path); err == nil {
		os.Remove(s.path)
	}

	var err error
	s.listener, err = net.Listen("unix", s.path)
	if err != nil {
		return err
	}

	// Owner-only access; management commands need no further auth.
	os.Chmod(s.path, 0o600)

	s.running.Store(true)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if server is shutting down
			if !s.running.Load() {
				return nil
			}
			// Check if listener was closed
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		// Track goroutine for graceful shutdown
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Shutdown gracefully shuts down the server.
//
// This method:
//  1. Sets running flag to false
//  2. Closes the listener to stop accepting new connections
//  3. Waits for all active connections to finish (respects context timeout)
func (s *Server) Shutdown(ctx context.Context) error {
	// Mark server as shutting down
	s.running.Store(false)

	// Close listener to stop accepting new connections
	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
	}
	os.Remove(s.path)

	// Wait for all goroutines to finish
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// All goroutines finished
		return closeErr
	case <-ctx.Done():
		// Context timeout - return context error
		return ctx.Err()
	}
}

// handleConnection serves one command per connection: a single request
// line, a response, then close. Clients pipe a command and read to EOF.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(connTimeout))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		conn.Write([]byte("ERR empty command\n"))
		return
	}

	s.handler.Execute(conn, fields[0], fields[1:])
}
