package forge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Backend != BackendPerplexity {
		t.Errorf("default backend = %q", cfg.LLM.Backend)
	}
	if cfg.HANA.Port != 443 {
		t.Errorf("default HANA port = %d", cfg.HANA.Port)
	}
	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("default listen addr = %q", cfg.Server.ListenAddr)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
registry:
  base_url: https://agents.example.com/api/v1
  oauth_url: https://auth.example.com/oauth/token
  client_id: client-a
  client_secret: secret-a
llm:
  backend: perplexity
  perplexity:
    api_key: pplx-key
hana:
  skip: true
`)

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() error: %v", err)
	}
	if cfg.Registry.BaseURL != "https://agents.example.com/api/v1" {
		t.Errorf("BaseURL = %q", cfg.Registry.BaseURL)
	}
	if !cfg.HANA.Skip {
		t.Error("hana.skip not parsed")
	}
	// Unset sections keep their defaults.
	if cfg.LLM.Perplexity.Model != "sonar" {
		t.Errorf("default model lost: %q", cfg.LLM.Perplexity.Model)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_FORGE_SECRET", "from-env")
	path := writeConfig(t, `
registry:
  client_secret: ${TEST_FORGE_SECRET}
  ui_base_url: ${TEST_FORGE_UNSET:-https://fallback.example.com}
`)

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() error: %v", err)
	}
	if cfg.Registry.ClientSecret != "from-env" {
		t.Errorf("ClientSecret = %q", cfg.Registry.ClientSecret)
	}
	if cfg.Registry.UIBaseURL != "https://fallback.example.com" {
		t.Errorf("UIBaseURL = %q", cfg.Registry.UIBaseURL)
	}
}

func TestLoadConfigRequiredEnvVar(t *testing.T) {
	path := writeConfig(t, "registry:\n  client_secret: ${TEST_FORGE_MISSING:?registry secret required}\n")
	if _, err := LoadConfigFromFile(path); err == nil || !strings.Contains(err.Error(), "registry secret required") {
		t.Errorf("expected required-variable error, got %v", err)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("SAP_AGENT_BASE_URL", "https://override.example.com")
	t.Setenv("PPLX_DESTINATION", "landscape-destination")
	t.Setenv("SKIP_HANA", "true")
	path := writeConfig(t, "registry:\n  base_url: https://file.example.com\n")

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() error: %v", err)
	}
	if cfg.Registry.BaseURL != "https://override.example.com" {
		t.Errorf("BaseURL = %q, env override should win", cfg.Registry.BaseURL)
	}
	if cfg.Registry.ToolDestination != "landscape-destination" {
		t.Errorf("ToolDestination = %q, want value from PPLX_DESTINATION", cfg.Registry.ToolDestination)
	}
	if !cfg.HANA.Skip {
		t.Error("SKIP_HANA=true not applied")
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HANA.Skip = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"registry.base_url", "registry.client_id", "llm.perplexity.api_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidateUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Backend = "mystery"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "unknown llm backend") {
		t.Errorf("expected unknown backend error, got %v", err)
	}
}
