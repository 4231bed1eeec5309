package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// idKeys are the agent-identifier keys the service has been observed to use,
// probed in this order.
var idKeys = []string{"id", "agentId", "ID", "Id"}

// ToolConfigEntry is one name/value pair in a tool configuration.
type ToolConfigEntry struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ToolPayload is the create-tool request body.
type ToolPayload struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Config []ToolConfigEntry `json:"config"`
}

// AttachmentStatus reports which tool-config schema the service accepted.
type AttachmentStatus string

const (
	AttachmentOK       AttachmentStatus = "ok"
	AttachmentFallback AttachmentStatus = "ok_fallback"
	AttachmentError    AttachmentStatus = "error"
)

// ToolAttachment records the outcome of a tool-attachment attempt,
// including the fallback path when the primary schema was rejected.
type ToolAttachment struct {
	Status        AttachmentStatus `json:"status"`
	Request       ToolPayload      `json:"request"`
	Response      json.RawMessage  `json:"response,omitempty"`
	FallbackFrom  string           `json:"fallbackFrom,omitempty"`
	PrimaryError  string           `json:"primaryError,omitempty"`
	PrimaryStatus int              `json:"primaryStatus,omitempty"`
}

// CreateAgent creates an agent and returns the raw service response.
func (c *Client) CreateAgent(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	return c.Post(ctx, "Agents", payload)
}

// CreateTool attaches a tool to an existing agent.
func (c *Client) CreateTool(ctx context.Context, agentID string, payload ToolPayload) (json.RawMessage, error) {
	return c.Post(ctx, fmt.Sprintf("Agents/%s/tools", agentID), payload)
}

// ListAgents returns the raw listing response.
func (c *Client) ListAgents(ctx context.Context) (json.RawMessage, error) {
	return c.Get(ctx, "Agents")
}

// DefaultAgentPayload returns a minimal payload accepted by the create
// endpoint across landscapes.
func DefaultAgentPayload(name string) map[string]any {
	return map[string]any{
		"name":                name,
		"type":                "smart",
		"safetyCheck":         true,
		"expertIn":            "You are an expert in searching the web",
		"initialInstructions": "## WebSearch Tool Hint\nTry to append 'Wikipedia' to your search query",
		"iterations":          20,
		"baseModel":           "OpenAiGpt4oMini",
		"advancedModel":       "OpenAiGpt4o",
	}
}

// NormalizeToolPayload validates a tool payload and fills gaps. Config
// entries must be objects with a non-empty name; values pass through as-is
// since the API accepts strings, numbers, and booleans.
func NormalizeToolPayload(tool ToolPayload) (ToolPayload, error) {
	if tool.Name == "" {
		tool.Name = "Unnamed Tool"
	}
	tool.Type = strings.TrimSpace(tool.Type)
	for i, entry := range tool.Config {
		entry.Name = strings.TrimSpace(entry.Name)
		if entry.Name == "" {
			return ToolPayload{}, fmt.Errorf("tool config entry %d missing name", i)
		}
		tool.Config[i] = entry
	}
	return tool, nil
}

// ExtractAgentID pulls an agent identifier out of a create response. The
// response shape varies across environments: the id may sit at the top
// level or inside a nested sapAgentResponse/data object.
func ExtractAgentID(raw json.RawMessage) string {
	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ""
	}

	if id := idFromMap(resp); id != "" {
		return id
	}

	for _, wrapper := range []string{"sapAgentResponse", "data"} {
		if nested, ok := resp[wrapper].(map[string]any); ok {
			if id := idFromMap(nested); id != "" {
				return id
			}
		}
	}

	return ""
}

func idFromMap(m map[string]any) string {
	for _, key := range idKeys {
		if v, ok := m[key]; ok {
			if s := stringID(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// stringID renders scalar id values; the service returns both strings and
// numbers depending on the landscape.
func stringID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		if id == float64(int64(id)) {
			return fmt.Sprintf("%d", int64(id))
		}
		return fmt.Sprintf("%v", id)
	default:
		return ""
	}
}

// ResolveAgentID returns the id for an agent, preferring the create
// response and falling back to the listing when the response carries none.
func (c *Client) ResolveAgentID(ctx context.Context, createResp json.RawMessage, name string) (string, error) {
	if id := ExtractAgentID(createResp); id != "" {
		return id, nil
	}
	id := c.resolveAgentIDByListing(ctx, name)
	if id == "" {
		return "", fmt.Errorf("could not resolve agent id for %q after creation", name)
	}
	return id, nil
}

// resolveAgentIDByListing lists all agents and matches by exact name,
// preferring the last matching entry. Listing order reflecting creation
// order is an observed behavior, not a documented guarantee.
func (c *Client) resolveAgentIDByListing(ctx context.Context, name string) string {
	raw, err := c.ListAgents(ctx)
	if err != nil {
		c.logger.Warn("agent listing fallback failed", "error", err)
		return ""
	}

	agents := ParseListing(raw)

	if name != "" {
		var match string
		for _, agent := range agents {
			if strings.TrimSpace(agent.Name) == name && agent.ID != "" {
				match = agent.ID
			}
		}
		if match != "" {
			return match
		}
	}

	// Last item with any id.
	for i := len(agents) - 1; i >= 0; i-- {
		if agents[i].ID != "" {
			return agents[i].ID
		}
	}
	return ""
}

// ListedAgent is one entry from the agents listing, flattened to the fields
// the toolkit consumes.
type ListedAgent struct {
	ID   string
	Name string
}

// ParseListing flattens a listing response into ListedAgent entries,
// normalizing the envelope and the id-key variants in one place.
func ParseListing(raw json.RawMessage) []ListedAgent {
	items := listingItems(raw)
	out := make([]ListedAgent, 0, len(items))
	for _, item := range items {
		name, _ := item["name"].(string)
		if name == "" {
			name, _ = item["Name"].(string)
		}
		out = append(out, ListedAgent{ID: idFromMap(item), Name: name})
	}
	return out
}

// listingItems normalizes the listing response: a bare array, or an object
// wrapping the array under "value" or "items".
func listingItems(raw json.RawMessage) []map[string]any {
	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	for _, key := range []string{"value", "items"} {
		if nested, ok := obj[key]; ok {
			if err := json.Unmarshal(nested, &arr); err == nil {
				return arr
			}
		}
	}
	return nil
}

// AttachSearchTool attaches the web-search tool to an agent. Some
// landscapes expect the tool config under the key "destination", others
// under "perplexity"; the primary schema is tried first and rejected
// attempts retry exactly once with the alternate key. Transport errors do
// not trigger the fallback.
func (c *Client) AttachSearchTool(ctx context.Context, agentID, destination string) ToolAttachment {
	if destination = strings.TrimSpace(destination); destination == "" {
		destination = "perplexity"
	}

	primary := ToolPayload{
		Name:   "Perplexity Destination",
		Type:   "bringyourown",
		Config: []ToolConfigEntry{{Name: "destination", Value: destination}},
	}

	resp, err := c.CreateTool(ctx, agentID, primary)
	if err == nil {
		return ToolAttachment{Status: AttachmentOK, Request: primary, Response: resp}
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		// Not a service rejection; no alternate schema will help.
		return ToolAttachment{Status: AttachmentError, Request: primary, PrimaryError: err.Error()}
	}

	c.logger.Warn("primary tool schema rejected, retrying with alternate key",
		"agent_id", agentID, "status", apiErr.StatusCode)

	alternate := ToolPayload{
		Name:   "Web Search Tool",
		Type:   "bringyourown",
		Config: []ToolConfigEntry{{Name: "perplexity", Value: destination}},
	}

	altResp, altErr := c.CreateTool(ctx, agentID, alternate)
	if altErr == nil {
		return ToolAttachment{
			Status:        AttachmentFallback,
			Request:       alternate,
			Response:      altResp,
			FallbackFrom:  primary.Name,
			PrimaryError:  apiErr.Error(),
			PrimaryStatus: apiErr.StatusCode,
		}
	}

	return ToolAttachment{
		Status:        AttachmentError,
		Request:       alternate,
		FallbackFrom:  primary.Name,
		PrimaryError:  apiErr.Error(),
		PrimaryStatus: apiErr.StatusCode,
		Response:      errorResponse(altErr),
	}
}

func errorResponse(err error) json.RawMessage {
	body := map[string]any{"error": err.Error()}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		body["status"] = apiErr.StatusCode
	}
	raw, _ := json.Marshal(body)
	return raw
}

// AgentURL composes the management UI link for an agent, or "" when no UI
// base is configured.
func AgentURL(uiBase, agentID string) string {
	uiBase = strings.TrimRight(strings.TrimSpace(uiBase), "/")
	if uiBase == "" || agentID == "" {
		return ""
	}
	return uiBase + "/" + agentID
}
