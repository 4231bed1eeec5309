package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/okrause/scenarioforge/pkg/forge"
	"github.com/okrause/scenarioforge/pkg/forge/proposal"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an agent package from a business scenario",
		Long: `Asks the LLM for a complete agent package: name, prompt, business case,
and HANA table definitions with sample data. Missing scenario details are
collected interactively.

The package is written as JSON so it can be reviewed, edited, and fed to
'scenarioforge create'. With --create the agent is created right away.

Examples:
  scenarioforge generate --customer "Acme Retail" --use-case "Churn reduction" -o package.json
  scenarioforge generate --refine
  scenarioforge generate --create`,
		RunE: runGenerate,
	}

	cmd.Flags().String("customer", "", "customer name")
	cmd.Flags().String("use-case", "", "business use case")
	cmd.Flags().String("solution", "", "main SAP solution focus")
	cmd.Flags().String("metric", "", "metric to optimise")
	cmd.Flags().StringP("output", "o", "", "write the package JSON to this file (default stdout)")
	cmd.Flags().Bool("refine", false, "interactively refine the package before finishing")
	cmd.Flags().Bool("create", false, "create the agent immediately after generation")
	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	f, _, logger, closeStore, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	scenario := proposal.Scenario{}
	scenario.Customer, _ = cmd.Flags().GetString("customer")
	scenario.UseCase, _ = cmd.Flags().GetString("use-case")
	scenario.MainSolution, _ = cmd.Flags().GetString("solution")
	scenario.Metric, _ = cmd.Flags().GetString("metric")

	if scenario.Customer == "" || scenario.UseCase == "" {
		if err := promptScenario(&scenario); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	pkg, err := f.Generate(ctx, scenario, nil)
	if err != nil {
		return err
	}
	printPackageSummary(cmd.OutOrStdout(), pkg)

	if refine, _ := cmd.Flags().GetBool("refine"); refine {
		pkg, err = refineLoop(ctx, f, scenario, pkg)
		if err != nil {
			return err
		}
	}

	if err := writePackage(cmd, pkg); err != nil {
		return err
	}

	if create, _ := cmd.Flags().GetBool("create"); create {
		result, err := f.CreateAgent(ctx, pkg)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), result)
	} else {
		logger.Debug("generation finished without agent creation")
	}
	return nil
}

// promptScenario collects missing scenario inputs with an interactive form.
func promptScenario(scenario *proposal.Scenario) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Customer").
				Description("Who is this demo for?").
				Value(&scenario.Customer).
				Validate(required("customer")),
			huh.NewInput().
				Title("Use case").
				Description("The business problem the agent should tackle.").
				Value(&scenario.UseCase).
				Validate(required("use case")),
			huh.NewInput().
				Title("Main SAP solution focus (optional)").
				Value(&scenario.MainSolution),
			huh.NewInput().
				Title("Metric to optimise (optional)").
				Value(&scenario.Metric),
		),
	)
	return form.Run()
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// refineLoop lets the user iterate on the package: each non-empty line is
// sent back to the model as a refinement request together with the current
// draft's fields.
func refineLoop(ctx context.Context, f *forge.Forge, scenario proposal.Scenario, pkg *proposal.AgentPackage) (*proposal.AgentPackage, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "refine> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "done",
	})
	if err != nil {
		return nil, fmt.Errorf("initializing refinement prompt: %w", err)
	}
	defer rl.Close()

	fmt.Println("Describe changes to the package, or press Enter to accept it.")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return pkg, nil
			}
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" || line == "done" || line == "accept" {
			return pkg, nil
		}

		refined, err := f.Generate(ctx, scenario, &proposal.Refinement{
			CurrentFields: []proposal.Field{
				{Label: "Agent name", Value: pkg.AgentName},
				{Label: "Schema name", Value: pkg.SchemaName},
				{Label: "Agent prompt", Value: pkg.AgentPrompt},
			},
			Instructions: line,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "refinement failed: %v\n", err)
			continue
		}
		pkg = refined
		printPackageSummary(os.Stdout, pkg)
	}
}

func writePackage(cmd *cobra.Command, pkg *proposal.AgentPackage) error {
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing package file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Package written to %s\n", output)
	return nil
}

func printPackageSummary(w io.Writer, pkg *proposal.AgentPackage) {
	fmt.Fprintf(w, "\nAgent:  %s\n", pkg.AgentName)
	fmt.Fprintf(w, "Schema: %s\n", pkg.SchemaName)
	fmt.Fprintf(w, "Tables: %d\n", len(pkg.Tables))
	for _, table := range pkg.Tables {
		fmt.Fprintf(w, "  - %s (%d columns, %d sample rows)\n",
			table.Name, len(table.Columns), len(table.Rows))
	}
	fmt.Fprintln(w)
}

func printResult(w io.Writer, result *forge.Result) {
	fmt.Fprintf(w, "Agent created: %s\n", result.AgentID)
	if result.AgentURL != "" {
		fmt.Fprintf(w, "URL:           %s\n", result.AgentURL)
	}
	fmt.Fprintf(w, "Schema:        %s (provisioned: %t)\n", result.SchemaName, result.Provisioned)
	fmt.Fprintf(w, "Search tool:   %s\n", result.Tool.Status)
}
