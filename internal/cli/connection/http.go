// Package connection provides server connectivity for credgate-cli.
package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrorKind classifies a failed call for callers that need to react
// differently to "could not reach the server" and "the server said no".
type ErrorKind string

const (
	ErrorKindNetwork ErrorKind = "NETWORK_FAILURE"
	ErrorKindAuth    ErrorKind = "AUTHENTICATION_FAILED"
)

// ClientError wraps a failure with its classification. The underlying
// detail is kept for verbose logging; user-facing surfaces print their
// own generic message instead so server internals stay hidden.
type ClientError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClientError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx envelope decoded from the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// envelope is the wire format every server response is wrapped in.
type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	User      struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	token   string
}

// NewHTTPClient creates a new HTTP client. The token may be empty for
// unauthenticated calls such as login and health checks. When insecure
// is set, TLS certificate verification is skipped.
func NewHTTPClient(server, token string, insecure bool) *HTTPClient {
	// Ensure baseURL has a scheme
	baseURL := server
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	client := &http.Client{
		Timeout: 30 * time.Second,
	}
	if insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  client,
	}
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

// SetTLSConfig replaces the TLS configuration used for HTTPS servers,
// e.g. to trust a private CA.
func (c *HTTPClient) SetTLSConfig(cfg *tls.Config) {
	c.client.Transport = &http.Transport{
		TLSClientConfig: cfg,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

// Login submits credentials and returns the issued token and user
// profile. Failures are classified: a transport error is
// NETWORK_FAILURE, anything the server rejected is
// AUTHENTICATION_FAILED. A 200 without a token counts as a rejection.
func (c *HTTPClient) Login(ctx context.Context, username, password, deviceID string) (*LoginResult, error) {
	body := map[string]any{
		"username": username,
		"password": password,
	}
	if deviceID != "" {
		body["device_id"] = deviceID
	}

	resp, err := c.Post(ctx, "/api/v1/auth/login", body)
	if err != nil {
		return nil, &ClientError{Kind: ErrorKindNetwork, Err: err}
	}

	var result LoginResult
	if err := ParseResponse(resp, &result); err != nil {
		return nil, &ClientError{Kind: ErrorKindAuth, Err: err}
	}
	if result.Token == "" {
		return nil, &ClientError{Kind: ErrorKindAuth, Err: errors.New("response contained no token")}
	}

	return &result, nil
}

// addHeaders adds authentication and common headers.
func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", "credgate-cli/1.0")
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// ParseResponse unwraps the server envelope and decodes its data field
// into target. For non-2xx responses it returns an *APIError built
// from the envelope's code and message.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      env.Code,
			Message:   env.Message,
			RequestID: env.RequestID,
		}
	}

	if target != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}

	return nil
}
