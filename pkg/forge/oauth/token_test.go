package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenValidityWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := &Token{Value: "abc", ExpiresAt: base.Add(100 * time.Second)}

	if !token.Valid(base) {
		t.Error("token should be valid at issue time")
	}
	if !token.Valid(base.Add(39 * time.Second)) {
		t.Error("token should be valid before the skew window opens")
	}
	if token.Valid(base.Add(41 * time.Second)) {
		t.Error("token should be invalid once inside the 60s skew window")
	}
	if token.Valid(base.Add(200 * time.Second)) {
		t.Error("token should be invalid after expiry")
	}
}

func TestTokenNilAndEmpty(t *testing.T) {
	var token *Token
	if token.Valid(time.Now()) {
		t.Error("nil token must not be valid")
	}
	empty := &Token{ExpiresAt: time.Now().Add(time.Hour)}
	if empty.Valid(time.Now()) {
		t.Error("token without a value must not be valid")
	}
}

func TestBearerObtainsAndCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "id-1" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
	defer srv.Close()

	ts := NewTokenSource(srv.URL, "id-1", "secret-1")

	got, err := ts.Bearer(context.Background())
	if err != nil {
		t.Fatalf("Bearer: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("token = %q, want tok-1", got)
	}

	// Second call must reuse the cached token.
	if _, err := ts.Bearer(context.Background()); err != nil {
		t.Fatalf("Bearer (cached): %v", err)
	}
	if calls != 1 {
		t.Errorf("token endpoint called %d times, want 1", calls)
	}
}

func TestBearerRefreshesExpiredToken(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"access_token":"tok","expires_in":100}`))
	}))
	defer srv.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := NewTokenSource(srv.URL, "id", "secret", WithClock(func() time.Time { return now }))

	if _, err := ts.Bearer(context.Background()); err != nil {
		t.Fatalf("Bearer: %v", err)
	}

	// 41s later the token is inside the skew window and must refresh.
	now = now.Add(41 * time.Second)
	if _, err := ts.Bearer(context.Background()); err != nil {
		t.Fatalf("Bearer after expiry: %v", err)
	}
	if calls != 2 {
		t.Errorf("token endpoint called %d times, want 2", calls)
	}
}

func TestBearerAuthErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-200 status", http.StatusUnauthorized, `{"error":"invalid_client"}`},
		{"missing access_token", http.StatusOK, `{"expires_in":3600}`},
		{"non-json body", http.StatusOK, `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ts := NewTokenSource(srv.URL, "id", "secret")
			_, err := ts.Bearer(context.Background())
			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthError, got %v", err)
			}
		})
	}
}
