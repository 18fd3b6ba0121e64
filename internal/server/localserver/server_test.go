package localserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
)

// stubStore implements storage.Store with a fixed session count.
type stubStore struct {
	count int
}

func (s *stubStore) Create(context.Context, *domain.Session) error { return nil }
func (s *stubStore) Get(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}
func (s *stubStore) Update(context.Context, *domain.Session, uint64) error { return nil }
func (s *stubStore) Delete(context.Context, string) error                  { return nil }
func (s *stubStore) List(context.Context, *service.SessionFilter) ([]*domain.Session, int, error) {
	return nil, 0, nil
}
func (s *stubStore) CountByUserID(context.Context, string) (int, error) { return 0, nil }
func (s *stubStore) ListByUserID(context.Context, string) ([]*domain.Session, error) {
	return nil, nil
}
func (s *stubStore) DeleteByUserID(context.Context, string) (int, error) { return 0, nil }
func (s *stubStore) DeleteExpired(context.Context) (int, error)          { return 0, nil }
func (s *stubStore) GetSessionByTokenHash(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}
func (s *stubStore) GetSession(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}
func (s *stubStore) UpdateSession(context.Context, *domain.Session) error { return nil }
func (s *stubStore) Count(context.Context) int                            { return s.count }
func (s *stubStore) Scan(func(*domain.Session) bool)                      {}
func (s *stubStore) Close() error                                         { return nil }

func TestHandler_Execute(t *testing.T) {
	t.Run("status reports server facts", func(t *testing.T) {
		h := NewHandler(&HandlerConfig{
			Store:          &stubStore{count: 42},
			StorageBackend: "memory",
			Version:        "1.2.3",
			StartedAt:      time.Now().Add(-time.Minute),
		})

		var buf bytes.Buffer
		if err := h.Execute(&buf, "status", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}

		out := buf.String()
		if !strings.HasPrefix(out, "OK\n") {
			t.Errorf("expected OK response, got: %s", out)
		}
		for _, want := range []string{"version: 1.2.3", "storage_backend: memory", "session_count: 42", "uptime_seconds:"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected status output to contain %q, got: %s", want, out)
			}
		}
	})

	t.Run("status works without a store", func(t *testing.T) {
		h := NewHandler(&HandlerConfig{StorageBackend: "memory"})

		var buf bytes.Buffer
		if err := h.Execute(&buf, "status", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if !strings.Contains(buf.String(), "session_count: 0") {
			t.Errorf("expected zero session count, got: %s", buf.String())
		}
	})

	t.Run("ping answers OK", func(t *testing.T) {
		h := NewHandler(nil)

		var buf bytes.Buffer
		if err := h.Execute(&buf, "ping", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if buf.String() != "OK\n" {
			t.Errorf("expected 'OK', got: %s", buf.String())
		}
	})

	t.Run("unknown command answers ERR", func(t *testing.T) {
		h := NewHandler(nil)

		var buf bytes.Buffer
		if err := h.Execute(&buf, "explode", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if !strings.HasPrefix(buf.String(), "ERR unknown command") {
			t.Errorf("expected ERR response, got: %s", buf.String())
		}
	})

	t.Run("reload invokes the hook", func(t *testing.T) {
		called := false
		h := NewHandler(&HandlerConfig{
			ReloadFunc: func(ctx context.Context) error {
				called = true
				return nil
			},
		})

		var buf bytes.Buffer
		if err := h.Execute(&buf, "reload", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if !called {
			t.Error("expected reload hook to be invoked")
		}
		if !strings.HasPrefix(buf.String(), "OK") {
			t.Errorf("expected OK response, got: %s", buf.String())
		}
	})

	t.Run("reload reports hook failure", func(t *testing.T) {
		h := NewHandler(&HandlerConfig{
			ReloadFunc: func(ctx context.Context) error {
				return errors.New("bad config")
			},
		})

		var buf bytes.Buffer
		if err := h.Execute(&buf, "reload", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if !strings.Contains(buf.String(), "ERR reload failed: bad config") {
			t.Errorf("expected reload failure, got: %s", buf.String())
		}
	})

	t.Run("reload without hook answers ERR", func(t *testing.T) {
		h := NewHandler(nil)

		var buf bytes.Buffer
		if err := h.Execute(&buf, "reload", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if !strings.Contains(buf.String(), "ERR reload not available") {
			t.Errorf("expected ERR response, got: %s", buf.String())
		}
	})

	t.Run("drain invokes the hook", func(t *testing.T) {
		called := false
		h := NewHandler(&HandlerConfig{
			DrainFunc: func() { called = true },
		})

		var buf bytes.Buffer
		if err := h.Execute(&buf, "drain", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if !called {
			t.Error("expected drain hook to be invoked")
		}
	})

	t.Run("shutdown signals after responding", func(t *testing.T) {
		signalled := make(chan struct{})
		h := NewHandler(&HandlerConfig{
			ShutdownFunc: func() { close(signalled) },
		})

		var buf bytes.Buffer
		if err := h.Execute(&buf, "shutdown", nil); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if !strings.HasPrefix(buf.String(), "OK") {
			t.Errorf("expected OK response, got: %s", buf.String())
		}

		select {
		case <-signalled:
		case <-time.After(time.Second):
			t.Error("expected shutdown hook to be invoked")
		}
	})
}

func TestServer_RoundTrip(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "credgate.sock")

	h := NewHandler(&HandlerConfig{
		Store:          &stubStore{count: 3},
		StorageBackend: "memory",
		Version:        "test",
	})
	s := New(socketPath, h)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ListenAndServe()
	}()

	// Wait for the socket to appear
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("unix", socketPath)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to dial socket: %v", err)
	}

	if _, err := conn.Write([]byte("status\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	out, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	conn.Close()

	if !strings.HasPrefix(string(out), "OK\n") {
		t.Errorf("expected OK response, got: %s", out)
	}
	if !strings.Contains(string(out), "session_count: 3") {
		t.Errorf("expected session count in status, got: %s", out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("ListenAndServe returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for ListenAndServe to return")
	}
}
