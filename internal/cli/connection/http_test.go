package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name       string
		server     string
		wantPrefix string
	}{
		{"with http prefix", "http://localhost:5080", "http://localhost:5080"},
		{"with https prefix", "https://localhost:5443", "https://localhost:5443"},
		{"without prefix", "localhost:5080", "http://localhost:5080"},
		{"hostname only", "auth.example.com", "http://auth.example.com"},
		{"trailing slash stripped", "http://localhost:5080/", "http://localhost:5080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.server, "cgtk_token", false)
			if client.BaseURL() != tt.wantPrefix {
				t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), tt.wantPrefix)
			}
		})
	}
}

func TestHTTPClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}

		if got := r.Header.Get("Authorization"); got != "Bearer cgtk_token" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer cgtk_token")
		}
		if got := r.Header.Get("User-Agent"); got != "credgate-cli/1.0" {
			t.Errorf("User-Agent = %q, want %q", got, "credgate-cli/1.0")
		}

		if r.URL.Path != "/test/path" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/test/path")
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"code":"OK","message":"Success"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "cgtk_token", false)
	resp, err := client.Get(context.Background(), "/test/path")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestHTTPClient_Post(t *testing.T) {
	type requestBody struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}

		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want %q", r.Header.Get("Content-Type"), "application/json")
		}

		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}

		if body.Name != "test" || body.Value != 42 {
			t.Errorf("body = %+v, want {Name:test Value:42}", body)
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"code":"OK","message":"Created"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "cgtk_token", false)
	resp, err := client.Post(context.Background(), "/api/create", requestBody{Name: "test", Value: 42})
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
}

func TestHTTPClient_Post_NilBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Content-Type should not be set for nil body
		if r.Header.Get("Content-Type") != "" {
			t.Errorf("Content-Type should be empty for nil body, got %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "cgtk_token", false)
	resp, err := client.Post(context.Background(), "/api/trigger", nil)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()
}

func TestHTTPClient_NoToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization should be empty without a token, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", false)
	resp, err := client.Get(context.Background(), "/health")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()
}

func TestHTTPClient_SetToken(t *testing.T) {
	var lastAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", false)
	client.SetToken("cgtk_later")

	resp, err := client.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if lastAuth != "Bearer cgtk_later" {
		t.Errorf("Authorization = %q, want %q", lastAuth, "Bearer cgtk_later")
	}
}

func TestParseResponse_UnwrapsEnvelope(t *testing.T) {
	type item struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"code":"OK","message":"Success","request_id":"req-1","data":{"id":"123","name":"test"}}`))
	}))
	defer server.Close()

	resp, _ := http.Get(server.URL)

	var result item
	if err := ParseResponse(resp, &result); err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}

	if result.ID != "123" || result.Name != "test" {
		t.Errorf("result = %+v, want {ID:123 Name:test}", result)
	}
}

func TestParseResponse_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"code":"OK","message":"Success","request_id":"req-1"}`))
	}))
	defer server.Close()

	resp, _ := http.Get(server.URL)

	var result struct {
		ID string `json:"id"`
	}
	if err := ParseResponse(resp, &result); err != nil {
		t.Fatalf("ParseResponse without data field failed: %v", err)
	}
	if result.ID != "" {
		t.Errorf("target should stay zero without a data field, got %+v", result)
	}
}

func TestParseResponse_Error(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErrMsg string
		wantCode   string
	}{
		{
			name:       "enveloped error",
			status:     400,
			body:       `{"code":"CG-ARG-1002","message":"username is required","request_id":"req-2"}`,
			wantErrMsg: "[CG-ARG-1002] username is required",
			wantCode:   "CG-ARG-1002",
		},
		{
			name:       "auth error",
			status:     401,
			body:       `{"code":"CG-AUTH-4010","message":"invalid credentials"}`,
			wantErrMsg: "[CG-AUTH-4010] invalid credentials",
			wantCode:   "CG-AUTH-4010",
		},
		{
			name:       "non-json error body",
			status:     500,
			body:       `not json`,
			wantErrMsg: "status 500",
			wantCode:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, _ := http.Get(server.URL)
			err := ParseResponse(resp, nil)

			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErrMsg)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error should be *APIError, got %T", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("Status = %d, want %d", apiErr.Status, tt.status)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestParseResponse_NilTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"code":"OK","message":"Success","data":{"ignored":true}}`))
	}))
	defer server.Close()

	resp, _ := http.Get(server.URL)
	err := ParseResponse(resp, nil)

	if err != nil {
		t.Errorf("ParseResponse with nil target should not error: %v", err)
	}
}

func TestHTTPClient_Login(t *testing.T) {
	t.Run("success returns token and user", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/auth/login" {
				t.Errorf("path = %q, want /api/v1/auth/login", r.URL.Path)
			}

			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["username"] != "alice" || body["password"] != "password123" {
				t.Errorf("unexpected credentials: %v", body["username"])
			}
			if body["device_id"] != "dev-1" {
				t.Errorf("device_id = %q, want dev-1", body["device_id"])
			}

			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"code":"OK","message":"Success","data":{"token":"cgtk_issued","token_type":"Bearer","session_id":"cgss-1","user":{"id":"cgus-1","username":"alice","role":"user"}}}`))
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, "", false)
		result, err := client.Login(context.Background(), "alice", "password123", "dev-1")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		if result.Token != "cgtk_issued" {
			t.Errorf("Token = %q, want cgtk_issued", result.Token)
		}
		if result.User.Username != "alice" {
			t.Errorf("User.Username = %q, want alice", result.User.Username)
		}
		if result.User.Role != "user" {
			t.Errorf("User.Role = %q, want user", result.User.Role)
		}
	})

	t.Run("rejection is AUTHENTICATION_FAILED", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"CG-AUTH-4010","message":"invalid credentials"}`))
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, "", false)
		_, err := client.Login(context.Background(), "alice", "wrong", "")
		if err == nil {
			t.Fatal("Login should fail")
		}

		var clientErr *ClientError
		if !errors.As(err, &clientErr) {
			t.Fatalf("error should be *ClientError, got %T", err)
		}
		if clientErr.Kind != ErrorKindAuth {
			t.Errorf("Kind = %q, want %q", clientErr.Kind, ErrorKindAuth)
		}
	})

	t.Run("200 without token is AUTHENTICATION_FAILED", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"code":"OK","message":"Success","data":{"user":{"username":"alice"}}}`))
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, "", false)
		_, err := client.Login(context.Background(), "alice", "password123", "")
		if err == nil {
			t.Fatal("Login without a token in the response should fail")
		}

		var clientErr *ClientError
		if !errors.As(err, &clientErr) {
			t.Fatalf("error should be *ClientError, got %T", err)
		}
		if clientErr.Kind != ErrorKindAuth {
			t.Errorf("Kind = %q, want %q", clientErr.Kind, ErrorKindAuth)
		}
	})

	t.Run("unreachable server is NETWORK_FAILURE", func(t *testing.T) {
		// Reserved port with nothing listening
		client := NewHTTPClient("127.0.0.1:1", "", false)
		_, err := client.Login(context.Background(), "alice", "password123", "")
		if err == nil {
			t.Fatal("Login against a closed port should fail")
		}

		var clientErr *ClientError
		if !errors.As(err, &clientErr) {
			t.Fatalf("error should be *ClientError, got %T", err)
		}
		if clientErr.Kind != ErrorKindNetwork {
			t.Errorf("Kind = %q, want %q", clientErr.Kind, ErrorKindNetwork)
		}
	})
}

func TestClientError_Error(t *testing.T) {
	err := &ClientError{Kind: ErrorKindAuth, Err: errors.New("boom")}
	if got := err.Error(); got != "AUTHENTICATION_FAILED: boom" {
		t.Errorf("Error() = %q", got)
	}

	bare := &ClientError{Kind: ErrorKindNetwork}
	if got := bare.Error(); got != "NETWORK_FAILURE" {
		t.Errorf("Error() = %q", got)
	}
}
