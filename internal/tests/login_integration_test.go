// Package tests provides end-to-end tests that run the full CredGate
// server stack in-process and drive it with the real client packages.
package tests

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yndnr/credgate/internal/cli/authflow"
	"github.com/yndnr/credgate/internal/cli/connection"
	"github.com/yndnr/credgate/internal/cli/state"
	"github.com/yndnr/credgate/internal/core/service"
	"github.com/yndnr/credgate/internal/directory"
	"github.com/yndnr/credgate/internal/server/httpserver"
	"github.com/yndnr/credgate/internal/server/httpserver/handler"
	"github.com/yndnr/credgate/internal/storage"
)

// startServer boots a full in-memory server and returns its base URL.
func startServer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	storageCfg := storage.DefaultConfig(t.TempDir())
	storageCfg.Logger = quiet
	store, err := storage.Open(ctx, storageCfg)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	dir, err := directory.Open(ctx, directory.Config{
		Backend: directory.BackendMemory,
		Logger:  quiet,
	})
	if err != nil {
		t.Fatalf("open directory: %v", err)
	}
	t.Cleanup(func() { dir.Close() })

	tokenSvc := service.NewTokenService(store, nil)
	sessionSvc := service.NewSessionService(store, tokenSvc, nil)
	authSvc := service.NewAuthService(dir, sessionSvc, tokenSvc, nil)
	directorySvc := service.NewDirectoryService(dir, sessionSvc)

	if _, err := directorySvc.Bootstrap(ctx, []service.BootstrapUser{{
		Username:    "admin",
		Password:    "admin123",
		DisplayName: "Administrator",
		Role:        "admin",
	}}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler: &handler.Config{
			Auth:           authSvc,
			Sessions:       sessionSvc,
			Tokens:         tokenSvc,
			Directory:      directorySvc,
			Store:          store,
			Logger:         quiet,
			Version:        "test",
			StartedAt:      time.Now(),
			StorageBackend: storage.BackendMemory,
		},
		Logger: quiet,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

// countingNavigator records how many times it ran.
type countingNavigator struct {
	runs int
	last *state.Session
}

func (n *countingNavigator) Navigate(ctx context.Context, sess *state.Session) error {
	n.runs++
	n.last = sess
	return nil
}

func newFlow(t *testing.T, serverURL string) (*authflow.Flow, *state.Store, *countingNavigator) {
	t.Helper()

	store := state.NewStoreAt(t.TempDir())
	nav := &countingNavigator{}

	flow, err := authflow.New(authflow.Config{
		Transport: connection.NewHTTPClient(serverURL, "", false),
		Store:     store,
		Navigator: nav,
		Server:    serverURL,
		DeviceID:  "integration-device",
	})
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	return flow, store, nav
}

func TestLogin_EndToEnd(t *testing.T) {
	serverURL := startServer(t)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		flow, store, nav := newFlow(t, serverURL)

		sess, err := flow.Submit(ctx, authflow.Credentials{
			Username: "admin",
			Password: "admin123",
		})
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}

		if flow.State() != authflow.StateSuccess {
			t.Errorf("state = %v, want success", flow.State())
		}
		if sess.Token == "" {
			t.Error("session has no token")
		}
		if sess.User.Username != "admin" {
			t.Errorf("username = %q", sess.User.Username)
		}
		if nav.runs != 1 {
			t.Errorf("navigator ran %d times, want 1", nav.runs)
		}

		saved, err := store.Load()
		if err != nil {
			t.Fatalf("session not persisted: %v", err)
		}
		if saved.Token != sess.Token {
			t.Error("persisted token differs from returned token")
		}

		// The issued credential must actually work.
		client := connection.NewHTTPClient(serverURL, sess.Token, false)
		resp, err := client.Get(ctx, "/api/v1/auth/whoami")
		if err != nil {
			t.Fatalf("whoami: %v", err)
		}
		var who handler.WhoAmIResponse
		if err := connection.ParseResponse(resp, &who); err != nil {
			t.Fatalf("whoami: %v", err)
		}
		if who.User == nil || who.User.Username != "admin" {
			t.Errorf("whoami user = %+v", who.User)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		flow, store, nav := newFlow(t, serverURL)

		_, err := flow.Submit(ctx, authflow.Credentials{
			Username: "admin",
			Password: "wrong-password",
		})
		if !errors.Is(err, authflow.ErrLoginFailed) {
			t.Fatalf("err = %v, want login failure", err)
		}
		if err.Error() != "invalid username or password" {
			t.Errorf("message = %q, want the generic one", err.Error())
		}

		if flow.State() != authflow.StateError {
			t.Errorf("state = %v, want error", flow.State())
		}
		if nav.runs != 0 {
			t.Error("navigator must not run on failure")
		}
		if _, err := store.Load(); !errors.Is(err, state.ErrNoSession) {
			t.Error("no session may be persisted on failure")
		}
	})

	t.Run("unknown user gets the same message", func(t *testing.T) {
		flow, _, _ := newFlow(t, serverURL)

		_, err := flow.Submit(ctx, authflow.Credentials{
			Username: "nobody",
			Password: "admin123",
		})
		if err == nil || err.Error() != "invalid username or password" {
			t.Errorf("err = %v, want the generic message", err)
		}
	})

	t.Run("missing credentials never reach the server", func(t *testing.T) {
		flow, store, _ := newFlow(t, serverURL)

		_, err := flow.Submit(ctx, authflow.Credentials{Username: "admin"})
		if !errors.Is(err, authflow.ErrMissingCredentials) {
			t.Fatalf("err = %v, want missing credentials", err)
		}
		if flow.State() != authflow.StateIdle {
			t.Errorf("state = %v, want idle", flow.State())
		}
		if _, err := store.Load(); !errors.Is(err, state.ErrNoSession) {
			t.Error("no session may be persisted")
		}
	})

	t.Run("retry after failure succeeds", func(t *testing.T) {
		flow, store, nav := newFlow(t, serverURL)

		if _, err := flow.Submit(ctx, authflow.Credentials{
			Username: "admin", Password: "typo",
		}); err == nil {
			t.Fatal("expected first attempt to fail")
		}

		sess, err := flow.Submit(ctx, authflow.Credentials{
			Username: "admin", Password: "admin123",
		})
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if sess == nil || nav.runs != 1 {
			t.Errorf("retry: sess=%v navRuns=%d", sess, nav.runs)
		}
		if _, err := store.Load(); err != nil {
			t.Errorf("session not persisted after retry: %v", err)
		}
	})
}

func TestLogin_NetworkFailure(t *testing.T) {
	// A server that is already gone.
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	flow, store, nav := newFlow(t, url)

	_, err := flow.Submit(context.Background(), authflow.Credentials{
		Username: "admin",
		Password: "admin123",
	})
	if !errors.Is(err, authflow.ErrLoginFailed) {
		t.Fatalf("err = %v, want login failure", err)
	}

	// The cause is a transport error, not a rejection.
	var clientErr *connection.ClientError
	if !errors.As(err, &clientErr) || clientErr.Kind != connection.ErrorKindNetwork {
		t.Errorf("cause = %v, want network error", err)
	}

	if nav.runs != 0 {
		t.Error("navigator must not run")
	}
	if _, err := store.Load(); !errors.Is(err, state.ErrNoSession) {
		t.Error("no session may be persisted")
	}
}

func TestLogout_EndToEnd(t *testing.T) {
	serverURL := startServer(t)
	ctx := context.Background()

	flow, _, _ := newFlow(t, serverURL)
	sess, err := flow.Submit(ctx, authflow.Credentials{
		Username: "admin", Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	client := connection.NewHTTPClient(serverURL, sess.Token, false)
	resp, err := client.Post(ctx, "/api/v1/auth/logout", nil)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// The revoked credential must stop working.
	resp, err = client.Get(ctx, "/api/v1/auth/whoami")
	if err != nil {
		t.Fatalf("whoami after logout: %v", err)
	}
	if err := connection.ParseResponse(resp, nil); err == nil {
		t.Error("whoami should fail after logout")
	}
}
