// Package llm normalizes chat-completion calls across two interchangeable
// backends: the SAP AI Core OpenAI-compatible proxy and the Perplexity
// HTTP API. Only one backend is active per deployment.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message roles accepted by both backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces one assistant message for an ordered list of chat
// messages.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// CallError wraps a transport or SDK failure on the way to the model.
type CallError struct {
	Backend string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Backend, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// ResponseError reports a response that arrived but carried no extractable
// assistant content.
type ResponseError struct {
	Backend string
	Detail  string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s response missing assistant content: %s", e.Backend, e.Detail)
}

// NormalizeMessages lower-cases roles and folds anything outside
// system/user/assistant into user.
func NormalizeMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		switch role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			role = RoleUser
		}
		out[i] = Message{Role: role, Content: m.Content}
	}
	return out
}
