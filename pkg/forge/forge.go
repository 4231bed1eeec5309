package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/okrause/scenarioforge/pkg/forge/hana"
	"github.com/okrause/scenarioforge/pkg/forge/history"
	"github.com/okrause/scenarioforge/pkg/forge/llm"
	"github.com/okrause/scenarioforge/pkg/forge/oauth"
	"github.com/okrause/scenarioforge/pkg/forge/proposal"
	"github.com/okrause/scenarioforge/pkg/forge/registry"
)

// Forge runs the full pipeline: proposal generation, HANA provisioning,
// agent creation, and tool attachment.
type Forge struct {
	config    *Config
	logger    *slog.Logger
	registry  *registry.Client
	generator *proposal.Generator
	history   *history.Store
}

// New assembles a Forge from validated configuration. The history store is
// optional; pass nil to skip local run recording.
func New(cfg *Config, store *history.Store, logger *slog.Logger) (*Forge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tokens := oauth.NewTokenSource(
		cfg.Registry.OAuthURL,
		cfg.Registry.ClientID,
		cfg.Registry.ClientSecret,
		oauth.WithLogger(logger),
	)
	client := registry.NewClient(cfg.Registry.BaseURL, tokens, registry.WithLogger(logger))

	backend, err := buildBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	template, err := proposal.LoadTemplate(cfg.LLM.PromptTemplate)
	if err != nil {
		return nil, err
	}

	return &Forge{
		config:    cfg,
		logger:    logger.With("component", "forge"),
		registry:  client,
		generator: proposal.NewGenerator(template, backend, logger),
		history:   store,
	}, nil
}

func buildBackend(cfg *Config, logger *slog.Logger) (llm.Generator, error) {
	switch cfg.LLM.Backend {
	case BackendPerplexity:
		return llm.NewPerplexity(llm.PerplexityConfig{
			APIURL: cfg.LLM.Perplexity.APIURL,
			APIKey: cfg.LLM.Perplexity.APIKey,
			Model:  cfg.LLM.Perplexity.Model,
		}, logger), nil
	case BackendAICore:
		return llm.NewAICore(llm.AICoreConfig{
			BaseURL:       cfg.LLM.AICore.BaseURL,
			AuthURL:       cfg.LLM.AICore.AuthURL,
			ClientID:      cfg.LLM.AICore.ClientID,
			ClientSecret:  cfg.LLM.AICore.ClientSecret,
			ResourceGroup: cfg.LLM.AICore.ResourceGroup,
			DeploymentID:  cfg.LLM.AICore.DeploymentID,
			Model:         cfg.LLM.AICore.Model,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.LLM.Backend)
	}
}

// Generate produces an agent package for a scenario, with optional
// refinement context from a previous iteration.
func (f *Forge) Generate(ctx context.Context, scenario proposal.Scenario, refine *proposal.Refinement) (*proposal.AgentPackage, error) {
	return f.generator.Generate(ctx, scenario, refine)
}

// Registry exposes the agents client for listing and ad-hoc calls.
func (f *Forge) Registry() *registry.Client {
	return f.registry
}

// Result is the outcome of a full agent creation run.
type Result struct {
	AgentID     string                  `json:"agentId"`
	AgentURL    string                  `json:"agentUrl,omitempty"`
	SchemaName  string                  `json:"schemaName"`
	Provisioned bool                    `json:"provisioned"`
	Tool        registry.ToolAttachment `json:"tool"`
	Response    json.RawMessage         `json:"sapAgentResponse,omitempty"`
}

// CreateAgent runs the provisioning half of the pipeline for an already
// generated (and possibly user-edited) package: HANA schema and catalog,
// agent creation in the registry, and search-tool attachment.
func (f *Forge) CreateAgent(ctx context.Context, pkg *proposal.AgentPackage) (*Result, error) {
	if len(pkg.Tables) == 0 {
		return nil, &proposal.ValidationError{Detail: "package has no tables"}
	}

	schemaFallback := hana.SanitizeIdentifier(pkg.Customer+"_"+pkg.UseCase, hana.DefaultSchemaFallback)
	schemaName := hana.SanitizeIdentifier(pkg.SchemaName, schemaFallback)

	// Local id: used for the catalog audit trail and offered to the
	// registry, which may assign its own.
	localID := uuid.New().String()

	result := &Result{SchemaName: schemaName}

	if f.config.HANA.Skip {
		f.logger.Info("HANA provisioning skipped by configuration", "schema", schemaName)
	} else {
		if err := f.provision(ctx, localID, schemaName, pkg); err != nil {
			f.recordRun(pkg, result, err)
			return nil, err
		}
		result.Provisioned = true
	}

	agentName := pkg.AgentName
	if agentName == "" {
		agentName = "Scenario Agent"
	}

	payload := registry.DefaultAgentPayload(agentName)
	payload["ID"] = localID
	payload["prompt"] = pkg.AgentPrompt
	payload["description"] = packageDescription(pkg)
	payload["metadata"] = map[string]any{
		"customer":         pkg.Customer,
		"useCase":          pkg.UseCase,
		"schemaName":       schemaName,
		"businessCaseCard": pkg.BusinessCaseCard,
	}

	createResp, err := f.registry.CreateAgent(ctx, payload)
	if err != nil {
		err = fmt.Errorf("creating agent in registry: %w", err)
		f.recordRun(pkg, result, err)
		return nil, err
	}
	result.Response = createResp

	agentID, err := f.registry.ResolveAgentID(ctx, createResp, agentName)
	if err != nil {
		// The registry accepted the agent but returned an unusable id.
		// Keep going with the local id so the run is still traceable.
		agentID = localID
		f.logger.Warn("could not resolve agent id from registry, using local id",
			"agent_id", agentID, "error", err)
	}
	result.AgentID = agentID
	result.AgentURL = registry.AgentURL(f.config.Registry.UIBaseURL, agentID)

	result.Tool = f.registry.AttachSearchTool(ctx, agentID, f.config.Registry.ToolDestination)

	f.logger.Info("agent created",
		"agent_id", agentID,
		"agent_name", agentName,
		"schema", schemaName,
		"tool_status", result.Tool.Status,
	)

	f.recordRun(pkg, result, nil)
	return result, nil
}

// provision creates the demo schema and records the audit trail in one
// HANA session.
func (f *Forge) provision(ctx context.Context, agentID, schemaName string, pkg *proposal.AgentPackage) error {
	prov, err := hana.Connect(ctx, hana.ConnConfig{
		Host:     f.config.HANA.Host,
		Port:     f.config.HANA.Port,
		User:     f.config.HANA.User,
		Password: f.config.HANA.Password,
	}, f.logger)
	if err != nil {
		return err
	}
	defer prov.Close()

	if err := prov.ProvisionTables(ctx, schemaName, pkg.Tables); err != nil {
		return err
	}

	catalog := hana.NewCatalog(prov, f.config.HANA.CatalogSchema)
	if err := catalog.Ensure(ctx); err != nil {
		return err
	}
	return catalog.Record(ctx, hana.CatalogEntry{
		AgentID:          agentID,
		AgentName:        pkg.AgentName,
		UseCase:          pkg.UseCase,
		Customer:         pkg.Customer,
		CreatedBy:        f.config.HANA.CreatedBy,
		Prompt:           pkg.AgentPrompt,
		BusinessCaseCard: pkg.BusinessCaseCard,
		SchemaName:       schemaName,
		Tables:           pkg.Tables,
	})
}

// packageDescription derives the short agent description: the first line of
// the business case card, else the use case.
func packageDescription(pkg *proposal.AgentPackage) string {
	if pkg.BusinessCaseCard != "" {
		line, _, _ := strings.Cut(pkg.BusinessCaseCard, "\n")
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return pkg.UseCase
}

func (f *Forge) recordRun(pkg *proposal.AgentPackage, result *Result, runErr error) {
	if f.history == nil {
		return
	}

	run := history.Run{
		AgentID:    result.AgentID,
		AgentName:  pkg.AgentName,
		Customer:   pkg.Customer,
		UseCase:    pkg.UseCase,
		SchemaName: result.SchemaName,
		AgentURL:   result.AgentURL,
		ToolStatus: string(result.Tool.Status),
		Status:     history.StatusOK,
	}
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
	}

	if _, err := f.history.Record(run); err != nil {
		f.logger.Warn("recording run history failed", "error", err)
	}
}
