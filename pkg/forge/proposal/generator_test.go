package proposal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okrause/scenarioforge/pkg/forge/llm"
)

const testTemplate = `# Prompt

## System Instruction

You design demo agents. Reply with a single JSON object.

## User Template

Design an agent for {customer} covering {use_case}.
Solution focus: {main_solution}. Metric: {metric}.{current_fields}
{refinements}
`

type stubBackend struct {
	reply    string
	err      error
	messages []llm.Message
}

func (s *stubBackend) Generate(_ context.Context, messages []llm.Message) (string, error) {
	s.messages = messages
	return s.reply, s.err
}

func mustTemplate(t *testing.T) *Template {
	t.Helper()
	tmpl, err := ParseTemplate(testTemplate)
	if err != nil {
		t.Fatalf("ParseTemplate() error: %v", err)
	}
	return tmpl
}

func TestParseTemplateMissingSections(t *testing.T) {
	if _, err := ParseTemplate("no markers here"); err == nil {
		t.Error("expected error for missing system marker")
	}
	if _, err := ParseTemplate("## System Instruction\nonly one"); err == nil {
		t.Error("expected error for missing user marker")
	}
}

func TestBuildMessages(t *testing.T) {
	gen := NewGenerator(mustTemplate(t), &stubBackend{}, nil)

	messages := gen.BuildMessages(Scenario{
		Customer: "Acme Retail",
		UseCase:  "Churn reduction",
	}, nil)

	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Role != llm.RoleSystem {
		t.Errorf("first role = %q", messages[0].Role)
	}
	user := messages[1].Content
	if !strings.Contains(user, "Acme Retail") || !strings.Contains(user, "Churn reduction") {
		t.Errorf("user message missing scenario values:\n%s", user)
	}
	if !strings.Contains(user, "Solution focus: Not specified") {
		t.Errorf("blank optional input not defaulted:\n%s", user)
	}
	if strings.Contains(user, "{") && strings.Contains(user, "}") {
		if strings.Contains(user, "{customer}") || strings.Contains(user, "{refinements}") {
			t.Errorf("unreplaced placeholder in user message:\n%s", user)
		}
	}
}

func TestBuildMessagesWithRefinement(t *testing.T) {
	gen := NewGenerator(mustTemplate(t), &stubBackend{}, nil)

	messages := gen.BuildMessages(Scenario{Customer: "Acme", UseCase: "Churn"}, &Refinement{
		CurrentFields: []Field{
			{Label: "Agent name", Value: "Churn Bot"},
			{Label: "Schema name", Value: ""},
		},
		Instructions: "add a returns table",
	})

	user := messages[1].Content
	if !strings.Contains(user, "Agent name: Churn Bot") {
		t.Errorf("current fields not carried:\n%s", user)
	}
	if strings.Contains(user, "Schema name:") {
		t.Errorf("empty field should be skipped:\n%s", user)
	}
	if !strings.Contains(user, "Refinement requests: add a returns table") {
		t.Errorf("refinement instructions missing:\n%s", user)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"plain fences", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"language tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePackage(t *testing.T) {
	raw := "```json\n" + `{
		"agentName": "Churn Bot",
		"agentPrompt": "You help with churn.",
		"schemaName": "CHURN_DEMO",
		"businessCaseCard": "## Problem\n...",
		"tables": [
			{"name": "Customers", "desc": "Customer master", "columns": [
				{"name": "Customer ID", "type": "NVARCHAR(10)", "isPrimaryKey": true},
				{"name": "Segment", "type": "NVARCHAR(40)", "nullable": false}
			], "rows": [{"Customer ID": "C-1", "Segment": "Enterprise"}]}
		]
	}` + "\n```"

	pkg, err := ParsePackage(raw)
	if err != nil {
		t.Fatalf("ParsePackage() error: %v", err)
	}
	if pkg.AgentName != "Churn Bot" {
		t.Errorf("AgentName = %q", pkg.AgentName)
	}
	if len(pkg.Tables) != 1 || len(pkg.Tables[0].Columns) != 2 {
		t.Fatalf("unexpected tables shape: %+v", pkg.Tables)
	}
	if !pkg.Tables[0].Columns[0].IsNullable() {
		t.Error("unset nullable should default to true")
	}
	if pkg.Tables[0].Columns[1].IsNullable() {
		t.Error("nullable=false not honored")
	}
}

func TestParsePackageRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not JSON", "the model apologizes"},
		{"not an object", `["tables"]`},
		{"missing tables", `{"agentName":"x"}`},
		{"empty tables", `{"agentName":"x","tables":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePackage(tt.raw)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestGenerateCopiesScenarioInputs(t *testing.T) {
	backend := &stubBackend{reply: `{"agentName":"A","tables":[{"name":"T","desc":"d","columns":[{"name":"ID","type":"INT"}]}]}`}
	gen := NewGenerator(mustTemplate(t), backend, nil)

	pkg, err := gen.Generate(context.Background(), Scenario{Customer: "Acme", UseCase: "Churn"}, nil)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if pkg.Customer != "Acme" || pkg.UseCase != "Churn" {
		t.Errorf("scenario inputs not copied: %+v", pkg)
	}
	if len(backend.messages) != 2 {
		t.Errorf("backend received %d messages", len(backend.messages))
	}
}
