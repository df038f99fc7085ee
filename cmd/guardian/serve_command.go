package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"guardian/internal/httpapi"
	"guardian/internal/logging"
	"guardian/internal/runstore"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}

			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			runner, modelClient, err := buildRunner(cfg, store, logger)
			if err != nil {
				return err
			}

			checks := map[string]httpapi.HealthChecker{
				"llm": modelClient,
			}
			server, err := httpapi.New(cfg, runner, store, checks, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := server.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Guardian API listening on %s\n", server.Addr())

			<-runCtx.Done()
			server.Stop()
			return nil
		},
	}
}
