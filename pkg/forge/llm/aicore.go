package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/okrause/scenarioforge/pkg/forge/oauth"
)

// AICoreConfig configures the SAP AI Core backend. The deployment must host
// an OpenAI-compatible chat-completions model.
type AICoreConfig struct {
	BaseURL       string
	AuthURL       string
	ClientID      string
	ClientSecret  string
	ResourceGroup string
	DeploymentID  string
	Model         string
	Temperature   float64
}

// AICore talks to an SAP AI Core deployment through the OpenAI-compatible
// inference surface, authenticating with XSUAA client credentials.
type AICore struct {
	client *openai.Client
	config AICoreConfig
	logger *slog.Logger
}

// aicoreTransport injects the AI-Resource-Group header on top of the
// bearer-token transport.
type aicoreTransport struct {
	base          http.RoundTripper
	resourceGroup string
}

func (t *aicoreTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("AI-Resource-Group", t.resourceGroup)
	return t.base.RoundTrip(clone)
}

// NewAICore creates the AI Core backend.
func NewAICore(config AICoreConfig, logger *slog.Logger) *AICore {
	if config.ResourceGroup == "" {
		config.ResourceGroup = "default"
	}
	if config.Temperature == 0 {
		config.Temperature = defaultTemperature
	}
	if logger == nil {
		logger = slog.Default()
	}

	tokens := oauth.NewTokenSource(config.AuthURL, config.ClientID, config.ClientSecret,
		oauth.WithLogger(logger))

	httpClient := &http.Client{
		Timeout: 120 * time.Second,
		Transport: &aicoreTransport{
			base:          &oauth.Transport{Source: tokens},
			resourceGroup: config.ResourceGroup,
		},
	}

	clientConfig := openai.DefaultConfig("")
	clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/") + "/v2/inference/deployments/" + config.DeploymentID
	clientConfig.HTTPClient = httpClient

	return &AICore{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger.With("component", "llm", "backend", "aicore"),
	}
}

// Generate implements Generator.
func (a *AICore) Generate(ctx context.Context, messages []Message) (string, error) {
	normalized := NormalizeMessages(messages)
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(normalized))
	for _, m := range normalized {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	a.logger.Debug("sending chat completion",
		"deployment", a.config.DeploymentID, "messages", len(chatMessages))

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.config.Model,
		Messages:    chatMessages,
		Temperature: float32(a.config.Temperature),
	})
	if err != nil {
		return "", &CallError{Backend: "aicore", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &ResponseError{Backend: "aicore", Detail: "response has no choices"}
	}
	content := messageText(resp.Choices[0].Message)
	if content == "" {
		return "", &ResponseError{Backend: "aicore", Detail: "choice has empty content"}
	}

	a.logger.Info("chat completion done",
		"deployment", a.config.DeploymentID,
		"duration_ms", time.Since(start).Milliseconds(),
		"content_bytes", len(content),
	)

	return content, nil
}

// messageText reads the assistant text from a decoded message. Some
// deployments return content as an ordered list of blocks instead of a plain
// string; the SDK decodes those into MultiContent, so the block texts are
// concatenated in order, matching the map-based extraction chain.
func messageText(msg openai.ChatCompletionMessage) string {
	if msg.Content != "" {
		return msg.Content
	}
	var out strings.Builder
	for _, part := range msg.MultiContent {
		out.WriteString(part.Text)
	}
	return out.String()
}
