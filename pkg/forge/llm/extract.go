package llm

import "fmt"

// extractContent pulls the assistant message text out of a decoded
// chat-completion response. The shape varies across providers and proxy
// versions, so extraction is an ordered chain of attempts; the first one
// that yields text wins:
//
//  1. choices[0].message.content as a plain string
//  2. choices[0].message.content as a list of content blocks, concatenated
//  3. choices[0].text (legacy completion shape)
//
// Returns "" when nothing matched.
func extractContent(resp map[string]any) string {
	choices, ok := resp["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}

	message, ok := choice["message"].(map[string]any)
	if !ok {
		message, _ = choice["delta"].(map[string]any)
	}

	if message != nil {
		switch content := message["content"].(type) {
		case string:
			return content
		case []any:
			return joinBlocks(content)
		}
	}

	if text, ok := choice["text"].(string); ok {
		return text
	}
	return ""
}

// joinBlocks concatenates block text in order. Blocks are either maps with
// a "text" field or stringified directly.
func joinBlocks(blocks []any) string {
	var out string
	for _, block := range blocks {
		if m, ok := block.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				out += text
			}
			continue
		}
		out += fmt.Sprintf("%v", block)
	}
	return out
}
