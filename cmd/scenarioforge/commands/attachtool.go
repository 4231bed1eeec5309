package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okrause/scenarioforge/pkg/forge/registry"
)

func newAttachToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach-tool <agent-id>",
		Short: "Attach the web-search tool to an existing agent",
		Long: `Attaches the Perplexity-backed search tool. The service's accepted
tool-config schema varies across landscapes, so a rejected primary payload
is retried once with the alternate config key.

Examples:
  scenarioforge attach-tool 4f3c2a10-...
  scenarioforge attach-tool 4f3c2a10-... --destination my-destination`,
		Args: cobra.ExactArgs(1),
		RunE: runAttachTool,
	}
	cmd.Flags().String("destination", "", "destination name for the primary tool config (default from config)")
	return cmd
}

func runAttachTool(cmd *cobra.Command, args []string) error {
	f, cfg, _, closeStore, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	destination, _ := cmd.Flags().GetString("destination")
	if destination == "" {
		destination = cfg.Registry.ToolDestination
	}
	attachment := f.Registry().AttachSearchTool(cmd.Context(), args[0], destination)

	switch attachment.Status {
	case registry.AttachmentOK:
		fmt.Fprintln(cmd.OutOrStdout(), "Tool attached.")
	case registry.AttachmentFallback:
		fmt.Fprintf(cmd.OutOrStdout(), "Tool attached with the alternate config schema (primary rejected: %s).\n",
			attachment.PrimaryError)
	case registry.AttachmentError:
		detail, _ := json.Marshal(attachment)
		return fmt.Errorf("tool attachment failed: %s", detail)
	}
	return nil
}
