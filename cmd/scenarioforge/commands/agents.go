package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okrause/scenarioforge/pkg/forge/registry"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List agents registered in the SAP Agents service",
		RunE:  runAgents,
	}
	cmd.Flags().Bool("json", false, "print the raw listing response")
	return cmd
}

func runAgents(cmd *cobra.Command, _ []string) error {
	f, cfg, _, closeStore, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	raw, err := f.Registry().ListAgents(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		var pretty json.RawMessage = raw
		indented, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(indented))
		return nil
	}

	agents := registry.ParseListing(raw)
	if len(agents) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No agents found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tURL")
	for _, agent := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			agent.Name, agent.ID, registry.AgentURL(cfg.Registry.UIBaseURL, agent.ID))
	}
	return w.Flush()
}
