// Package oauth implements the OAuth2 client-credentials grant with a
// cached access token, shared by the SAP Agents client and the AI Core
// proxy transport.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// refreshSkew is how early a token is considered expired. Refreshing
// slightly before the server-side expiry avoids races at the boundary.
const refreshSkew = 60 * time.Second

// AuthError is returned when the token endpoint rejects the grant or the
// response carries no usable access token.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth token request failed: %v", e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("oauth token request failed with status %d: %s", e.StatusCode, e.Body)
	}
	return "oauth token response missing access_token"
}

func (e *AuthError) Unwrap() error { return e.Err }

// Token is an issued access token. Tokens are replaced on refresh, never
// mutated in place.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used. A token is valid only
// strictly before ExpiresAt minus the refresh skew.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-refreshSkew))
}

// tokenResponse is the token endpoint's JSON body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenSource obtains and caches a client-credentials token. It is safe for
// concurrent use; a refresh blocks callers until a fresh token is cached.
type TokenSource struct {
	TokenURL     string
	ClientID     string
	ClientSecret string

	httpClient *http.Client
	logger     *slog.Logger

	// now is the clock; overridable in tests.
	now func() time.Time

	mu    sync.Mutex
	token *Token
}

// Option configures a TokenSource.
type Option func(*TokenSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(ts *TokenSource) { ts.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ts *TokenSource) { ts.logger = logger }
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(ts *TokenSource) { ts.now = now }
}

// NewTokenSource creates a TokenSource for the given token endpoint.
func NewTokenSource(tokenURL, clientID, clientSecret string, opts ...Option) *TokenSource {
	ts := &TokenSource{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       slog.Default().With("component", "oauth"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Bearer returns a valid access token value, refreshing synchronously when
// the cached token is absent or past its validity window.
func (ts *TokenSource) Bearer(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token.Valid(ts.now()) {
		return ts.token.Value, nil
	}

	token, err := ts.obtain(ctx)
	if err != nil {
		return "", err
	}
	ts.token = token
	return token.Value, nil
}

// obtain performs the client-credentials grant.
func (ts *TokenSource) obtain(ctx context.Context) (*Token, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {ts.ClientID},
		"client_secret": {ts.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("creating token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("reading token response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &AuthError{Err: fmt.Errorf("parsing token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &AuthError{Body: string(body)}
	}

	ts.logger.Debug("access token obtained", "expires_in", tr.ExpiresIn)

	return &Token{
		Value:     tr.AccessToken,
		ExpiresAt: ts.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// Transport is an http.RoundTripper that attaches a bearer token from a
// TokenSource to every request. Used by the AI Core proxy client.
type Transport struct {
	Source *TokenSource
	Base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Source.Bearer(req.Context())
	if err != nil {
		return nil, err
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}
