package command

import (
	"net/http"
	"testing"
	"time"
)

func TestStatusSummary(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/status/summary", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"status":          "ok",
			"version":         "1.0.0",
			"uptime_seconds":  3600,
			"storage_backend": "memory",
			"session_count":   5,
			"user_count":      2,
			"time":            time.Now().Format(time.RFC3339),
		})
	})

	store := loggedInStore(t, server)
	if err := runAppWith(t, store, server, "status", "summary"); err != nil {
		t.Fatalf("status summary failed: %v", err)
	}
}

func TestStatusHealth_NoAuthRequired(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("health check should not send credentials")
		}
		w.WriteHeader(http.StatusOK)
	})

	// No saved session: health must still work.
	if _, err := runApp(t, server, "status", "health"); err != nil {
		t.Fatalf("status health failed: %v", err)
	}
}

func TestStatusHealth_Unhealthy(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := runApp(t, server, "status", "health"); err == nil {
		t.Fatal("expected error for unhealthy server")
	}
}

func TestStatusGC(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/gc/trigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("gc method = %s, want POST", r.Method)
		}
		jsonResponse(w, http.StatusOK, map[string]any{"removed_count": 7})
	})

	store := loggedInStore(t, server)
	if err := runAppWith(t, store, server, "status", "gc"); err != nil {
		t.Fatalf("status gc failed: %v", err)
	}
}
