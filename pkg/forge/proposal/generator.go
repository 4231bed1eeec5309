package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/okrause/scenarioforge/pkg/forge/llm"
)

// Scenario is the business input the user supplies for a generation run.
type Scenario struct {
	Customer     string
	UseCase      string
	MainSolution string
	Metric       string
}

// Field is a labeled value from a previous iteration carried into a
// refinement request so the model keeps the existing configuration aligned.
type Field struct {
	Label string
	Value string
}

// Refinement carries optional iteration context: the fields of the current
// draft plus free-text change requests.
type Refinement struct {
	CurrentFields []Field
	Instructions  string
}

// Generator produces agent packages by combining a prompt template with an
// LLM backend.
type Generator struct {
	template *Template
	backend  llm.Generator
	logger   *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(template *Template, backend llm.Generator, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		template: template,
		backend:  backend,
		logger:   logger.With("component", "proposal"),
	}
}

// orDefault substitutes a visible marker for blank optional inputs so the
// model never sees an empty slot.
func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}

// BuildMessages renders the two-message chat request for a scenario.
func (g *Generator) BuildMessages(scenario Scenario, refine *Refinement) []llm.Message {
	scenarioLines := []string{
		"Customer: " + scenario.Customer,
		"Use case: " + scenario.UseCase,
		"Main SAP solution focus: " + orDefault(scenario.MainSolution),
		"Metric to optimise: " + orDefault(scenario.Metric),
	}

	var currentText string
	var instructions string
	if refine != nil {
		var contextLines []string
		for _, f := range refine.CurrentFields {
			if f.Value != "" {
				contextLines = append(contextLines, f.Label+": "+f.Value)
			}
		}
		if len(contextLines) > 0 {
			scenarioLines = append(scenarioLines,
				"Current agent configuration to keep aligned (update only if improvements are suggested):\n"+
					strings.Join(contextLines, "\n"))
			currentText = "\n" + strings.Join(contextLines, "\n")
		}
		instructions = strings.TrimSpace(refine.Instructions)
		if instructions != "" {
			scenarioLines = append(scenarioLines, "Refinement requests: "+instructions)
		}
	}

	scenarioLines = append(scenarioLines,
		"Return at least 6 SAP-relevant tables covering data sources, KPIs, and enablement assets for this scenario. "+
			"Provide a compelling agentName and a businessCaseCard string with emoji headers (Problem, Solution, Benefits, ROI).")

	replacer := strings.NewReplacer(
		"{customer}", scenario.Customer,
		"{use_case}", scenario.UseCase,
		"{main_solution}", orDefault(scenario.MainSolution),
		"{metric}", orDefault(scenario.Metric),
		"{current_fields}", currentText,
		"{refinements}", instructions,
	)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: g.template.System},
		{Role: llm.RoleUser, Content: replacer.Replace(g.template.User) + "\n" + strings.Join(scenarioLines, "\n")},
	}
}

// Generate runs one full iteration: render, call the model, parse and
// validate. The scenario inputs are copied into the returned package.
func (g *Generator) Generate(ctx context.Context, scenario Scenario, refine *Refinement) (*AgentPackage, error) {
	messages := g.BuildMessages(scenario, refine)

	g.logger.Info("requesting agent package",
		"customer", scenario.Customer, "use_case", scenario.UseCase, "refinement", refine != nil)

	raw, err := g.backend.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	pkg, err := ParsePackage(raw)
	if err != nil {
		return nil, err
	}
	pkg.Customer = scenario.Customer
	pkg.UseCase = scenario.UseCase

	g.logger.Info("agent package parsed",
		"agent_name", pkg.AgentName, "tables", len(pkg.Tables))
	return pkg, nil
}

// StripCodeFences removes a Markdown code-fence wrapper if the content is
// fenced, including a language tag on the opening fence.
func StripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	if _, rest, found := strings.Cut(trimmed, "\n"); found {
		trimmed = rest
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// ParsePackage parses raw model output into an AgentPackage. The output
// must be a JSON object with a non-empty tables array; nothing deeper is
// validated here.
func ParsePackage(raw string) (*AgentPackage, error) {
	cleaned := StripCodeFences(raw)

	var probe any
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return nil, &ValidationError{Detail: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if _, ok := probe.(map[string]any); !ok {
		return nil, &ValidationError{Detail: "response must be a JSON object"}
	}

	var pkg AgentPackage
	if err := json.Unmarshal([]byte(cleaned), &pkg); err != nil {
		return nil, &ValidationError{Detail: fmt.Sprintf("response does not match package shape: %v", err)}
	}
	if len(pkg.Tables) == 0 {
		return nil, &ValidationError{Detail: "response missing tables array"}
	}
	return &pkg, nil
}
