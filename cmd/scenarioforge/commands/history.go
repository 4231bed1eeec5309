package commands

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okrause/scenarioforge/pkg/forge"
	"github.com/okrause/scenarioforge/pkg/forge/history"
)

// openHistory opens the local run history. Failure is not fatal: the
// pipeline works without it, runs just go unrecorded.
func openHistory(cfg *forge.Config, logger *slog.Logger) (*history.Store, func()) {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logger.Warn("run history unavailable", "path", cfg.History.Path, "error", err)
		return nil, func() {}
	}
	return store, func() { store.Close() }
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past agent creation runs",
		RunE:  runHistory,
	}
	cmd.Flags().IntP("limit", "n", 20, "maximum number of runs to show")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSTATUS\tAGENT\tCUSTOMER\tUSE CASE\tSCHEMA\tAGENT ID")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.CreatedAt.Format("2006-01-02 15:04"),
			run.Status,
			run.AgentName,
			run.Customer,
			run.UseCase,
			run.SchemaName,
			run.AgentID,
		)
	}
	return w.Flush()
}
