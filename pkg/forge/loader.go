package forge

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR}, ${VAR:-default}, and ${VAR:?error}
// references in config values.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}`)

// LoadConfigFromFile reads a YAML config file, loading .env files first and
// expanding environment variable references before parsing. Missing files
// are not an error: the defaults plus environment variables are enough for
// a fully env-driven deployment.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else {
			expanded, err := expandEnvVars(string(data))
			if err != nil {
				return nil, fmt.Errorf("expanding environment variables: %w", err)
			}
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parsing config YAML: %w", err)
			}
		}
	}

	resolveSecrets(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// FindConfigFile searches standard locations for a config file.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"scenarioforge.yaml",
		"scenarioforge.yml",
		"configs/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadEnvFiles loads .env files without overwriting existing variables.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} references with their values. ${VAR:-default}
// substitutes the default when unset; ${VAR:?message} fails the load.
func expandEnvVars(input string) (string, error) {
	var expandErr error
	result := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		varName, modifier, fallback := submatches[1], submatches[2], submatches[3]

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		switch modifier {
		case "-":
			return fallback
		case "?":
			msg := fallback
			if msg == "" {
				msg = "required environment variable not set"
			}
			if expandErr == nil {
				expandErr = fmt.Errorf("%s - %s", varName, msg)
			}
			return ""
		}
		// Unset without a modifier: substitute empty so secrets can still be
		// filled from the keyring or dedicated env vars afterwards.
		return ""
	})
	return result, expandErr
}

// applyEnvOverrides maps the well-known deployment environment variables
// onto the config. A set variable always wins over the file value.
func applyEnvOverrides(cfg *Config) {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if val := os.Getenv(key); val != "" {
				*dst = val
				return
			}
		}
	}

	setString(&cfg.Registry.BaseURL, "SAP_AGENT_BASE_URL")
	setString(&cfg.Registry.OAuthURL, "SAP_AGENT_OAUTH_URL")
	setString(&cfg.Registry.ClientID, "SAP_AGENT_CLIENT_ID")
	setString(&cfg.Registry.ClientSecret, "SAP_AGENT_CLIENT_SECRET")
	setString(&cfg.Registry.UIBaseURL, "SAP_AGENT_UI_BASE_URL")
	setString(&cfg.Registry.ToolDestination, "PPLX_DESTINATION")

	setString(&cfg.LLM.Perplexity.APIKey, "PPLX_API_KEY")
	setString(&cfg.LLM.Perplexity.Model, "PPLX_MODEL")

	setString(&cfg.LLM.AICore.BaseURL, "AICORE_BASE_URL")
	setString(&cfg.LLM.AICore.AuthURL, "AICORE_AUTH_URL")
	setString(&cfg.LLM.AICore.ClientID, "AICORE_CLIENT_ID")
	setString(&cfg.LLM.AICore.ClientSecret, "AICORE_CLIENT_SECRET")
	setString(&cfg.LLM.AICore.ResourceGroup, "AICORE_RESOURCE_GROUP")
	setString(&cfg.LLM.AICore.DeploymentID, "AICORE_DEPLOYMENT_ID")

	setString(&cfg.HANA.Host, "HANA_HOST")
	setString(&cfg.HANA.User, "HANA_USER")
	setString(&cfg.HANA.Password, "HANA_PASSWORD")
	setString(&cfg.HANA.CatalogSchema, "HANA_CATALOG_SCHEMA")
	setString(&cfg.HANA.CreatedBy, "HANA_CREATED_BY")

	if port := os.Getenv("HANA_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			cfg.HANA.Port = p
		}
	}
	if skip := os.Getenv("SKIP_HANA"); skip != "" {
		cfg.HANA.Skip = strings.EqualFold(skip, "true") || skip == "1"
	}
}
