package command

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestUserCommand_Structure(t *testing.T) {
	cmd := UserCommand()
	if cmd.Name != "user" {
		t.Errorf("Name = %q, want %q", cmd.Name, "user")
	}

	subNames := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		subNames[sub.Name] = true
	}
	for _, name := range []string{"add", "list", "get", "status", "reset-password"} {
		if !subNames[name] {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

func TestUserAdd(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	var gotBody map[string]any
	server.handle("/admin/v1/users", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		jsonResponse(w, http.StatusCreated, map[string]any{
			"id":         "cgus-0002",
			"username":   "alice",
			"role":       "operator",
			"status":     "active",
			"created_at": time.Now().Format(time.RFC3339),
		})
	})

	store := loggedInStore(t, server)
	err := runAppWith(t, store, server, "user", "add", "alice",
		"--role", "operator", "--password", "s3cret-pw", "--display-name", "Alice")
	if err != nil {
		t.Fatalf("user add failed: %v", err)
	}

	if gotBody["username"] != "alice" || gotBody["role"] != "operator" {
		t.Errorf("request body = %v", gotBody)
	}
	if gotBody["password"] != "s3cret-pw" {
		t.Errorf("password not sent")
	}
	if gotBody["display_name"] != "Alice" {
		t.Errorf("display_name = %v", gotBody["display_name"])
	}
}

func TestUserList_Filters(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/users", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("role"); got != "admin" {
			t.Errorf("role filter = %q", got)
		}
		jsonResponse(w, http.StatusOK, map[string]any{
			"users": []map[string]any{
				{"id": "cgus-admin", "username": "admin", "role": "admin", "status": "active"},
			},
		})
	})

	store := loggedInStore(t, server)
	if err := runAppWith(t, store, server, "user", "list", "--role", "admin"); err != nil {
		t.Fatalf("user list failed: %v", err)
	}
}

func TestUserStatus(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/users/cgus-0002/status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != "disabled" {
			t.Errorf("status = %v", body["status"])
		}
		jsonResponse(w, http.StatusOK, map[string]any{
			"user":             map[string]any{"id": "cgus-0002", "username": "alice", "status": "disabled"},
			"revoked_sessions": 2,
		})
	})

	store := loggedInStore(t, server)
	if err := runAppWith(t, store, server, "user", "status", "cgus-0002", "disabled"); err != nil {
		t.Fatalf("user status failed: %v", err)
	}
}

func TestUserResetPassword(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/users/cgus-0002/password/reset" {
			t.Errorf("path = %q", r.URL.Path)
		}
		jsonResponse(w, http.StatusOK, map[string]any{"revoked_sessions": 1})
	})

	store := loggedInStore(t, server)
	err := runAppWith(t, store, server, "user", "reset-password", "cgus-0002", "--password", "new-pw-123")
	if err != nil {
		t.Fatalf("reset-password failed: %v", err)
	}
}
