package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
	"github.com/yndnr/credgate/internal/server/httpserver/handler"
)

func TestNew(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s := New(":8080", h)
	if s == nil {
		t.Fatal("New returned nil")
	}
	if s.httpServer == nil {
		t.Error("httpServer is nil")
	}
	if s.handler == nil {
		t.Error("handler is nil")
	}
}

func TestServer_Shutdown(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s := New(":0", h) // Use port 0 to get a random available port

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ListenAndServe()
	}()

	// Give server time to start
	time.Sleep(50 * time.Millisecond)

	// Shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Shutdown(ctx)
	if err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	// Wait for ListenAndServe to return
	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("ListenAndServe returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for ListenAndServe to return")
	}
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()
	if cfg == nil {
		t.Fatal("DefaultRouterConfig returned nil")
	}
	if cfg.GlobalRateLimit <= 0 {
		t.Error("GlobalRateLimit should be positive")
	}
	if cfg.LoginRatePerMinute <= 0 {
		t.Error("LoginRatePerMinute should be positive")
	}
}

// TestNewRouter exercises the assembled route groups end to end.
func TestNewRouter(t *testing.T) {
	store := newMockStore()
	users := newMockUserRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokenSvc := service.NewTokenService(store, nil)
	sessionSvc := service.NewSessionService(store, tokenSvc, nil)
	authSvc := service.NewAuthService(users, sessionSvc, tokenSvc, nil)
	directorySvc := service.NewDirectoryService(users, sessionSvc)

	for _, seed := range []struct {
		username, password string
		role               domain.Role
	}{
		{"alice", "alicepw123", domain.RoleUser},
		{"root", "rootpw1234", domain.RoleAdmin},
	} {
		user, err := domain.NewUser(seed.username, seed.password, seed.role)
		if err != nil {
			t.Fatalf("NewUser failed: %v", err)
		}
		if err := users.Create(context.Background(), user); err != nil {
			t.Fatalf("Create user failed: %v", err)
		}
	}

	router := NewRouter(&RouterConfig{
		Handler: &handler.Config{
			Auth:           authSvc,
			Sessions:       sessionSvc,
			Tokens:         tokenSvc,
			Directory:      directorySvc,
			Store:          store,
			Logger:         logger,
			Version:        "test",
			StorageBackend: "memory",
		},
		Logger:             logger,
		GlobalRateLimit:    1000,
		LoginRatePerMinute: 600,
		LoginBurst:         100,
	})

	login := func(t *testing.T, username, password string) string {
		t.Helper()
		body := `{"username": "` + username + `", "password": "` + password + `"}`
		req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("login failed with status %d: %s", rec.Code, rec.Body.String())
		}
		bodyStr := rec.Body.String()
		idx := strings.Index(bodyStr, `"token":"`)
		if idx < 0 {
			t.Fatalf("no token in login response: %s", bodyStr)
		}
		rest := bodyStr[idx+len(`"token":"`):]
		return rest[:strings.Index(rest, `"`)]
	}

	t.Run("health route is public", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("session route requires a credential", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/auth/whoami", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("login then whoami round trip", func(t *testing.T) {
		token := login(t, "alice", "alicepw123")

		req := httptest.NewRequest("GET", "/api/v1/auth/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"username":"alice"`) {
			t.Errorf("expected whoami to name the caller, got: %s", rec.Body.String())
		}
	})

	t.Run("admin route denies regular accounts", func(t *testing.T) {
		token := login(t, "alice", "alicepw123")

		req := httptest.NewRequest("GET", "/admin/v1/status/summary", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("admin route allows admin accounts", func(t *testing.T) {
		token := login(t, "root", "rootpw1234")

		req := httptest.NewRequest("GET", "/admin/v1/status/summary", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown route answers 404", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/nothing", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}
