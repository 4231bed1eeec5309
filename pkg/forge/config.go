// Package forge wires the scenario pipeline together: configuration,
// secret resolution, and the orchestrator that takes a business scenario
// all the way to a live agent with a provisioned HANA schema.
package forge

import (
	"fmt"
	"strings"
)

// Config is the full application configuration, loaded from YAML with
// environment-variable expansion.
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	LLM      LLMConfig      `yaml:"llm"`
	HANA     HANAConfig     `yaml:"hana"`
	History  HistoryConfig  `yaml:"history"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RegistryConfig covers the SAP Agents service and its OAuth endpoint.
// ToolDestination overrides the destination name sent with the search tool
// attachment; empty means the tool's built-in default.
type RegistryConfig struct {
	BaseURL         string `yaml:"base_url"`
	OAuthURL        string `yaml:"oauth_url"`
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	UIBaseURL       string `yaml:"ui_base_url"`
	ToolDestination string `yaml:"tool_destination"`
}

// LLM backend names.
const (
	BackendPerplexity = "perplexity"
	BackendAICore     = "aicore"
)

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Backend        string           `yaml:"backend"`
	PromptTemplate string           `yaml:"prompt_template"`
	Perplexity     PerplexityConfig `yaml:"perplexity"`
	AICore         AICoreConfig     `yaml:"aicore"`
}

// PerplexityConfig holds the direct HTTP backend settings.
type PerplexityConfig struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AICoreConfig holds the SAP AI Core backend settings.
type AICoreConfig struct {
	BaseURL       string `yaml:"base_url"`
	AuthURL       string `yaml:"auth_url"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	ResourceGroup string `yaml:"resource_group"`
	DeploymentID  string `yaml:"deployment_id"`
	Model         string `yaml:"model"`
}

// HANAConfig holds database connection and catalog settings. Skip disables
// provisioning entirely for landscapes without HANA access.
type HANAConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	CatalogSchema string `yaml:"catalog_schema"`
	CreatedBy     string `yaml:"created_by"`
	Skip          bool   `yaml:"skip"`
}

// HistoryConfig locates the local run-history database.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig covers the HTTP API.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration defaults. Secrets stay empty and
// are resolved from the keyring or environment at load time.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Backend:        BackendPerplexity,
			PromptTemplate: "prompts/scenario.md",
			Perplexity: PerplexityConfig{
				Model: "sonar",
			},
			AICore: AICoreConfig{
				ResourceGroup: "default",
			},
		},
		HANA: HANAConfig{
			Port:          443,
			CatalogSchema: "AGENT_CATALOG",
			CreatedBy:     "SCENARIOFORGE",
		},
		History: HistoryConfig{
			Path: "./data/scenarioforge.db",
		},
		Server: ServerConfig{
			ListenAddr: ":8000",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that everything a full pipeline run needs is present,
// reporting all missing settings at once.
func (c *Config) Validate() error {
	var missing []string

	if c.Registry.BaseURL == "" {
		missing = append(missing, "registry.base_url")
	}
	if c.Registry.OAuthURL == "" {
		missing = append(missing, "registry.oauth_url")
	}
	if c.Registry.ClientID == "" {
		missing = append(missing, "registry.client_id")
	}
	if c.Registry.ClientSecret == "" {
		missing = append(missing, "registry.client_secret")
	}

	switch c.LLM.Backend {
	case BackendPerplexity:
		if c.LLM.Perplexity.APIKey == "" {
			missing = append(missing, "llm.perplexity.api_key")
		}
	case BackendAICore:
		if c.LLM.AICore.BaseURL == "" {
			missing = append(missing, "llm.aicore.base_url")
		}
		if c.LLM.AICore.AuthURL == "" {
			missing = append(missing, "llm.aicore.auth_url")
		}
		if c.LLM.AICore.ClientID == "" {
			missing = append(missing, "llm.aicore.client_id")
		}
		if c.LLM.AICore.ClientSecret == "" {
			missing = append(missing, "llm.aicore.client_secret")
		}
		if c.LLM.AICore.DeploymentID == "" {
			missing = append(missing, "llm.aicore.deployment_id")
		}
	default:
		return fmt.Errorf("unknown llm backend %q (want %s or %s)",
			c.LLM.Backend, BackendPerplexity, BackendAICore)
	}

	if !c.HANA.Skip {
		if c.HANA.Host == "" {
			missing = append(missing, "hana.host")
		}
		if c.HANA.User == "" {
			missing = append(missing, "hana.user")
		}
		if c.HANA.Password == "" {
			missing = append(missing, "hana.password")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
