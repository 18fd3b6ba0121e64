package command

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cliconfig "github.com/yndnr/credgate/internal/cli/config"
	"github.com/yndnr/credgate/internal/cli/state"
)

// mockServer is a test HTTP server with per-path handlers.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
}

func newMockServer() *mockServer {
	m := &mockServer{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Find handler by path prefix match
		for pattern, handler := range m.handlers {
			if strings.HasPrefix(r.URL.Path, pattern) {
				handler(w, r)
				return
			}
		}
		http.NotFound(w, r)
	}))
	return m
}

func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.handlers[pattern] = handler
}

// jsonResponse writes data wrapped in the standard response envelope.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":       "OK",
		"message":    "Success",
		"request_id": "req-test",
		"data":       data,
	})
}

// errorResponse writes an error envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":       code,
		"message":    message,
		"request_id": "req-test",
	})
}

// runApp runs the CLI against the mock server with an isolated session
// store. The returned store can be inspected after the run.
func runApp(t *testing.T, server *mockServer, args ...string) (*state.Store, error) {
	t.Helper()

	store := state.NewStoreAt(t.TempDir())

	app := App()
	app.Metadata = map[string]any{
		"stateStore": store,
		"cliConfig":  cliconfig.Default(),
	}

	argv := []string{"credgate", "--server", server.URL}
	argv = append(argv, args...)
	return store, app.Run(argv)
}

// loggedInStore returns a store pre-seeded with a saved session.
func loggedInStore(t *testing.T, server *mockServer) *state.Store {
	t.Helper()

	store := state.NewStoreAt(t.TempDir())
	err := store.Save(&state.Session{
		Server: server.URL,
		Token:  "cgtk_testtoken",
		User: state.User{
			ID:       "cgus-admin",
			Username: "admin",
			Role:     "admin",
		},
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return store
}

// runAppWith runs the CLI with a caller-supplied store.
func runAppWith(t *testing.T, store *state.Store, server *mockServer, args ...string) error {
	t.Helper()

	app := App()
	app.Metadata = map[string]any{
		"stateStore": store,
		"cliConfig":  cliconfig.Default(),
	}

	argv := []string{"credgate", "--server", server.URL}
	argv = append(argv, args...)
	return app.Run(argv)
}
