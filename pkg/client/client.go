// Package client is the typed HTTP client for the vmemd memory API. It
// mirrors the REST surface one method per endpoint pair (global/project
// variants share a method that switches on the scope) and adapts it to
// the retention policy's remote store contract.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/vmemd/internal/retention"
)

// ErrUnauthorized indicates the server rejected the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

const defaultTimeout = 30 * time.Second

// Config carries the client connection settings.
type Config struct {
	// BaseURL is the vmemd API address, e.g. http://localhost:8000.
	BaseURL string

	// AuthToken enables bearer authentication when non-empty.
	AuthToken string

	// Timeout bounds each request. Zero selects 30s.
	Timeout time.Duration

	// HTTPClient overrides the transport when set. Timeout is ignored
	// in that case.
	HTTPClient *http.Client
}

// Client talks to one vmemd server.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// New validates the configuration and returns a client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    base,
		authToken:  cfg.AuthToken,
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string { return c.baseURL }

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Detail     string
	wrapped    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Detail)
}

func (e *APIError) Unwrap() error { return e.wrapped }

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	// Tunnelled deployments sit behind ngrok, which interposes a browser
	// interstitial unless asked not to.
	req.Header.Set("Ngrok-Skip-Browser-Warning", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, retention.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w: %v", path, retention.ErrRemoteUnavailable, err)
	}

	if err := statusError(resp.StatusCode, data); err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return nil
}

func statusError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: status, Detail: parseDetail(body)}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.wrapped = ErrUnauthorized
	case status == http.StatusTooManyRequests || status >= 500:
		apiErr.wrapped = retention.ErrRemoteUnavailable
	case status == http.StatusNotFound:
		apiErr.wrapped = retention.ErrNotFound
	}
	return apiErr
}

// parseDetail extracts the detail field servers put in error bodies,
// falling back to the raw body.
func parseDetail(body []byte) string {
	var shaped struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil && shaped.Detail != "" {
		return shaped.Detail
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	if detail == "" {
		detail = "empty response body"
	}
	return detail
}
