package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okrause/scenarioforge/pkg/forge/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for the scenario UI",
		Long: `Starts the HTTP server exposing package generation and agent creation:

  POST /api/generate  - generate an agent package from a scenario
  POST /api/agents    - provision HANA and create the agent from a package
  GET  /healthz       - health check

Examples:
  scenarioforge serve
  scenarioforge serve --listen :9000`,
		RunE: runServe,
	}
	cmd.Flags().String("listen", "", "listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	f, cfg, logger, closeStore, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.ListenAddr = listen
	}

	srv := server.New(f, cfg.Server, logger)
	if err := srv.Start(cmd.Context()); err != nil {
		return err
	}

	// Block until interrupted.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
