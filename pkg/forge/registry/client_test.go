package registry

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestPostSendsBearerAndParsesJSON(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))

	raw, err := client.Post(context.Background(), "Agents", map[string]any{"name": "X"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Errorf("body = %s", raw)
	}
}

func TestPostStatusErrorKeepsRawBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))

	_, err := client.Post(context.Background(), "Agents", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.RawBody != "upstream exploded" {
		t.Errorf("raw body = %q", apiErr.RawBody)
	}
}

func TestPostNonJSONBodyIsAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))

	_, err := client.Post(context.Background(), "Agents", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("non-JSON 200 must be distinct from status errors; status = %d", apiErr.StatusCode)
	}
}

func TestURLJoining(t *testing.T) {
	c := &Client{baseURL: "https://host/api"}
	if got := c.url("Agents"); got != "https://host/api/Agents" {
		t.Errorf("url = %q", got)
	}
	if got := c.url("/Agents"); got != "https://host/api/Agents" {
		t.Errorf("url = %q", got)
	}
	if got := c.url("https://other/abs"); got != "https://other/abs" {
		t.Errorf("absolute url must pass through, got %q", got)
	}
}
