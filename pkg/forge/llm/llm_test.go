package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeMessages(t *testing.T) {
	in := []Message{
		{Role: "System", Content: "a"},
		{Role: " USER ", Content: "b"},
		{Role: "assistant", Content: "c"},
		{Role: "tool", Content: "d"},
		{Role: "", Content: "e"},
	}
	got := NormalizeMessages(in)
	want := []string{"system", "user", "assistant", "user", "user"}
	for i, role := range want {
		if got[i].Role != role {
			t.Errorf("message %d: role = %q, want %q", i, got[i].Role, role)
		}
	}
	if in[0].Role != "System" {
		t.Error("input slice was mutated")
	}
}

func TestExtractContent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "plain string content",
			body: `{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`,
			want: "hello",
		},
		{
			name: "content block list",
			body: `{"choices":[{"message":{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}}]}`,
			want: "part one part two",
		},
		{
			name: "block list with bare string",
			body: `{"choices":[{"message":{"content":["raw"]}}]}`,
			want: "raw",
		},
		{
			name: "legacy text field",
			body: `{"choices":[{"text":"legacy"}]}`,
			want: "legacy",
		},
		{
			name: "delta shape",
			body: `{"choices":[{"delta":{"content":"streamed"}}]}`,
			want: "streamed",
		},
		{
			name: "no choices",
			body: `{"choices":[]}`,
			want: "",
		},
		{
			name: "missing content",
			body: `{"choices":[{"message":{"role":"assistant"}}]}`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp map[string]any
			if err := json.Unmarshal([]byte(tt.body), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := extractContent(resp); got != tt.want {
				t.Errorf("extractContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPerplexityGenerate(t *testing.T) {
	var gotAuth string
	var gotReq perplexityRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"agent_name\":\"x\"}"}}]}`))
	}))
	defer srv.Close()

	backend := NewPerplexity(PerplexityConfig{APIURL: srv.URL, APIKey: "pplx-test"}, nil)

	content, err := backend.Generate(context.Background(), []Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "generate"},
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if content != `{"agent_name":"x"}` {
		t.Errorf("content = %q", content)
	}
	if gotAuth != "Bearer pplx-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "sonar" {
		t.Errorf("model = %q, want sonar default", gotReq.Model)
	}
	if gotReq.MaxTokens != defaultMaxTokens {
		t.Errorf("max_tokens = %d, want %d", gotReq.MaxTokens, defaultMaxTokens)
	}
	if gotReq.Temperature != defaultTemperature {
		t.Errorf("temperature = %v, want %v", gotReq.Temperature, defaultTemperature)
	}
}

func TestAICoreGenerateBlockListContent(t *testing.T) {
	var gotResourceGroup string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/inference/deployments/d-1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		gotResourceGroup = r.Header.Get("AI-Resource-Group")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	backend := NewAICore(AICoreConfig{
		BaseURL:       srv.URL,
		AuthURL:       srv.URL + "/oauth/token",
		ClientID:      "id",
		ClientSecret:  "secret",
		ResourceGroup: "rg-test",
		DeploymentID:  "d-1",
		Model:         "gpt-4o",
	}, nil)

	content, err := backend.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if content != "part one part two" {
		t.Errorf("content = %q, want concatenated block text", content)
	}
	if gotResourceGroup != "rg-test" {
		t.Errorf("AI-Resource-Group = %q", gotResourceGroup)
	}
}

func TestPerplexityGenerateErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCall bool
		wantResp bool
	}{
		{name: "server error", status: 500, body: `{"error":"boom"}`, wantCall: true},
		{name: "non-JSON body", status: 200, body: `<html>`, wantResp: true},
		{name: "empty choices", status: 200, body: `{"choices":[]}`, wantResp: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			backend := NewPerplexity(PerplexityConfig{APIURL: srv.URL, APIKey: "k"}, nil)
			_, err := backend.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
			if err == nil {
				t.Fatal("expected error")
			}
			var callErr *CallError
			var respErr *ResponseError
			if tt.wantCall && !errors.As(err, &callErr) {
				t.Errorf("error = %v, want CallError", err)
			}
			if tt.wantResp && !errors.As(err, &respErr) {
				t.Errorf("error = %v, want ResponseError", err)
			}
		})
	}
}
