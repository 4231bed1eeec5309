package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okrause/scenarioforge/pkg/forge/hana"
	"github.com/okrause/scenarioforge/pkg/forge/proposal"
)

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <package.json>",
		Short: "Create an agent from a package file",
		Long: `Provisions the HANA schema, records the catalog entry, creates the agent
in the SAP Agents service, and attaches the web-search tool.

With --dry-run only the planned SQL statements are printed.

Examples:
  scenarioforge create package.json
  scenarioforge create package.json --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: runCreate,
	}
	cmd.Flags().Bool("dry-run", false, "print the provisioning plan without executing anything")
	cmd.Flags().StringP("output", "o", "", "write the run result as JSON to this file")
	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading package file: %w", err)
	}
	pkg, err := proposal.ParsePackage(string(data))
	if err != nil {
		return err
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return printPlan(cmd, pkg)
	}

	f, _, _, closeStore, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := f.CreateAgent(cmd.Context(), pkg)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), result)

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		summary, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, append(summary, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing result file: %w", err)
		}
	}
	return nil
}

// printPlan shows what provisioning would execute: the sanitized schema
// name and every DDL/DML statement with its bind values.
func printPlan(cmd *cobra.Command, pkg *proposal.AgentPackage) error {
	fallback := hana.SanitizeIdentifier(pkg.Customer+"_"+pkg.UseCase, hana.DefaultSchemaFallback)
	schemaName := hana.SanitizeIdentifier(pkg.SchemaName, fallback)
	plan := hana.PlanSchema(schemaName, pkg.Tables)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, plan.CreateSchema+";")
	for _, table := range plan.Tables {
		fmt.Fprintln(out, table.Drop+";")
		fmt.Fprintln(out, table.Create+";")
		for _, values := range table.InsertRows {
			bound, err := json.Marshal(values)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s; -- %s\n", table.InsertSQL, bound)
		}
	}
	return nil
}
