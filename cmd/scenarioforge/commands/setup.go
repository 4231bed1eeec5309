package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okrause/scenarioforge/pkg/forge"
)

// secretPrompts maps keyring keys to their wizard prompts.
var secretPrompts = []struct {
	key    string
	prompt string
}{
	{forge.KeyRegistrySecret, "SAP Agents OAuth client secret"},
	{forge.KeyPerplexityKey, "Perplexity API key"},
	{forge.KeyAICoreSecret, "AI Core client secret"},
	{forge.KeyHANAPassword, "HANA password"},
}

func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Store credentials in the OS keyring",
		Long: `Interactive wizard that stores the service credentials in the OS keyring
(Linux: Secret Service, macOS: Keychain, Windows: Credential Manager) so
they never sit in plaintext config files.

Press Enter to skip a credential and keep its current value.

Examples:
  scenarioforge setup
  scenarioforge setup --clear`,
		RunE: runSetup,
	}
	cmd.Flags().Bool("clear", false, "remove all stored credentials from the keyring")
	return cmd
}

func runSetup(cmd *cobra.Command, _ []string) error {
	if clear, _ := cmd.Flags().GetBool("clear"); clear {
		for _, s := range secretPrompts {
			_ = forge.DeleteKeyring(s.key)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Stored credentials removed.")
		return nil
	}

	if !forge.KeyringAvailable() {
		return fmt.Errorf("OS keyring is not available; set credentials via environment variables or .env instead")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "ScenarioForge setup - credentials are stored in the OS keyring.")
	fmt.Fprintln(cmd.OutOrStdout())

	stored := 0
	for _, s := range secretPrompts {
		state := "not set"
		if forge.GetKeyring(s.key) != "" {
			state = "already set"
		}

		value, err := forge.ReadPassword(fmt.Sprintf("%s (%s, Enter to skip): ", s.prompt, state))
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		if err := forge.StoreKeyring(s.key, value); err != nil {
			return fmt.Errorf("storing %s: %w", s.prompt, err)
		}
		stored++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d credential(s) stored.\n", stored)
	return nil
}
