// Package registry wraps the SAP Agents REST API: agent creation, tool
// attachment, and listing, over a token-cached authenticated HTTP client.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/okrause/scenarioforge/pkg/forge/oauth"
)

// APIError is returned for any registry call that comes back with a status
// of 400 or higher, or a 200 whose body is not JSON. The raw body is kept
// verbatim for diagnostics and is never parsed speculatively.
type APIError struct {
	StatusCode int
	RawBody    string
	Path       string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("agents API %s returned a non-JSON body: %s", e.Path, truncate(e.RawBody, 200))
	}
	return fmt.Sprintf("agents API %s failed with status %d: %s", e.Path, e.StatusCode, truncate(e.RawBody, 200))
}

// Client is an authenticated client for the SAP Agents service. The token
// cache lives in the TokenSource; the client itself is stateless and safe
// for concurrent use.
type Client struct {
	baseURL    string
	tokens     *oauth.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = logger }
}

// NewClient creates a registry client for the given base URL and OAuth
// token source.
func NewClient(baseURL string, tokens *oauth.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default().With("component", "registry"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends an authenticated JSON POST and returns the parsed body.
func (c *Client) Post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

// Get sends an authenticated GET and returns the parsed body.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	token, err := c.tokens.Bearer(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if method != http.MethodGet {
		// POSTs always carry a JSON object, mirroring the service contract.
		if payload == nil {
			payload = map[string]any{}
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("agents API call", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agents API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Error("agents API error", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, RawBody: string(raw), Path: path}
	}

	if !json.Valid(raw) {
		return nil, &APIError{RawBody: string(raw), Path: path}
	}

	return json.RawMessage(raw), nil
}

// url joins a path onto the base URL. Absolute URLs pass through untouched.
func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
