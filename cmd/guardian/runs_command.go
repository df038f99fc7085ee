package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"guardian/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the audit run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, ctx, "")
		},
	}

	var statusFilter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, ctx, statusFilter)
		},
	}
	listCmd.Flags().StringVar(&statusFilter, "status", "", "Filter runs by status")

	var jsonOutput bool
	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			run, err := store.GetByRunID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				payload := map[string]any{"run": run}
				if run.ReportJSON != "" {
					payload["report"] = json.RawMessage(run.ReportJSON)
				}
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(payload)
			}

			fmt.Fprintf(out, "Run:     %s\n", run.RunID)
			fmt.Fprintf(out, "Video:   %s\n", run.VideoID)
			fmt.Fprintf(out, "Status:  %s\n", run.Status)
			if run.FailureReason != "" {
				fmt.Fprintf(out, "Reason:  %s\n", run.FailureReason)
			}
			fmt.Fprintf(out, "Updated: %s\n", run.UpdatedAt.Format(time.RFC3339))
			if run.ReportJSON != "" {
				fmt.Fprintln(out, "Report:")
				fmt.Fprintln(out, run.ReportJSON)
			}
			return nil
		},
	}
	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit run and report as JSON")

	runsCmd.AddCommand(listCmd)
	runsCmd.AddCommand(showCmd)
	return runsCmd
}

func listRuns(cmd *cobra.Command, ctx *commandContext, statusFilter string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := runstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()

	var statuses []string
	if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
		statuses = append(statuses, trimmed)
	}
	runs, err := store.List(cmd.Context(), statuses...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		reason := run.FailureReason
		if reason == "" {
			reason = "-"
		}
		rows = append(rows, []string{
			run.RunID,
			run.VideoID,
			run.Status,
			reason,
			run.CreatedAt.Format(time.RFC3339),
		})
	}
	fmt.Fprintln(out, renderTable(out, []string{"RUN", "VIDEO", "STATUS", "REASON", "CREATED"}, rows))
	return nil
}
