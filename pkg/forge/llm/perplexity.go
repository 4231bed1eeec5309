package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultPerplexityURL is the Perplexity chat-completions endpoint.
const DefaultPerplexityURL = "https://api.perplexity.ai/chat/completions"

// Defaults tuned for structured JSON output: low temperature, generous
// token budget for the table definitions.
const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.15
)

// PerplexityConfig configures the direct HTTP backend.
type PerplexityConfig struct {
	APIURL      string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Perplexity calls the Perplexity chat-completions API directly over HTTPS
// with bearer-token auth.
type Perplexity struct {
	config     PerplexityConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPerplexity creates the direct HTTP backend.
func NewPerplexity(config PerplexityConfig, logger *slog.Logger) *Perplexity {
	if config.APIURL == "" {
		config.APIURL = DefaultPerplexityURL
	}
	if config.Model == "" {
		config.Model = "sonar"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = defaultTemperature
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Perplexity{
		config:     config,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger.With("component", "llm", "backend", "perplexity"),
	}
}

type perplexityRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// Generate implements Generator.
func (p *Perplexity) Generate(ctx context.Context, messages []Message) (string, error) {
	reqBody := perplexityRequest{
		Model:       p.config.Model,
		Messages:    NormalizeMessages(messages),
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", &CallError{Backend: "perplexity", Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", &CallError{Backend: "perplexity", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	p.logger.Debug("sending chat completion", "model", p.config.Model, "messages", len(messages))

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &CallError{Backend: "perplexity", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CallError{Backend: "perplexity", Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return "", &CallError{
			Backend: "perplexity",
			Err:     fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(raw), 300)),
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &ResponseError{Backend: "perplexity", Detail: "body is not JSON"}
	}

	content := extractContent(decoded)
	if content == "" {
		return "", &ResponseError{Backend: "perplexity", Detail: truncate(string(raw), 300)}
	}

	p.logger.Info("chat completion done",
		"model", p.config.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"content_bytes", len(content),
	)

	return content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
