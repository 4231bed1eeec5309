package forge

import (
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// keyringService is the service name used in the OS keyring.
const keyringService = "scenarioforge"

// Keyring key names for stored secrets.
const (
	KeyRegistrySecret = "registry_client_secret"
	KeyPerplexityKey  = "pplx_api_key"
	KeyAICoreSecret   = "aicore_client_secret"
	KeyHANAPassword   = "hana_password"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring, empty if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks whether the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__scenarioforge_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// resolveSecrets fills empty config secrets from the keyring. Environment
// variables are applied afterwards by applyEnvOverrides, so the effective
// priority is env var, then keyring, then config file.
func resolveSecrets(cfg *Config) {
	if cfg.Registry.ClientSecret == "" {
		cfg.Registry.ClientSecret = GetKeyring(KeyRegistrySecret)
	}
	if cfg.LLM.Perplexity.APIKey == "" {
		cfg.LLM.Perplexity.APIKey = GetKeyring(KeyPerplexityKey)
	}
	if cfg.LLM.AICore.ClientSecret == "" {
		cfg.LLM.AICore.ClientSecret = GetKeyring(KeyAICoreSecret)
	}
	if cfg.HANA.Password == "" {
		cfg.HANA.Password = GetKeyring(KeyHANAPassword)
	}
}

// ReadPassword prompts for a secret without echoing it to the terminal.
func ReadPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(data), nil
}
