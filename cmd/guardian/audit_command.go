package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"guardian/internal/logging"
	"guardian/internal/pipeline"
	"guardian/internal/report"
	"guardian/internal/runstore"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var videoID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "audit <video-url>",
		Short: "Audit a video against the compliance rule index",
		Args:  cobra.ExactArgs(1),
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

			runner, _, err := buildRunner(cfg, store, logger)
			if err != nil {
				return err
			}

			result, err := runner.Execute(cmd.Context(), pipeline.RunRequest{
				VideoID:  videoID,
				VideoURL: strings.TrimSpace(args[0]),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(result.Report)
			}
			printReport(cmd, result.Report)
			return nil
		},
	}

	cmd.Flags().StringVar(&videoID, "video-id", "", "Identifier recorded for the video (derived from the run when empty)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the report as JSON")
	return cmd
}

func printReport(cmd *cobra.Command, rep *report.ComplianceReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Video:    %s\n", rep.VideoID)
	fmt.Fprintf(out, "Run:      %s\n", rep.RunID)
	fmt.Fprintf(out, "Status:   %s\n", rep.OverallStatus)
	fmt.Fprintf(out, "Violations: %d\n", rep.ViolationCount)

	if len(rep.Verdicts) > 0 {
		rows := make([][]string, 0, len(rep.Verdicts))
		for _, v := range rep.Verdicts {
			rows = append(rows, []string{
				v.ChunkID,
				fmt.Sprintf("%.1fs", v.ChunkStart),
				string(v.Status),
				strings.Join(v.CitedRuleIDs, ", "),
				v.Rationale,
			})
		}
		fmt.Fprintln(out, renderTable(out, []string{"CHUNK", "START", "STATUS", "RULES", "RATIONALE"}, rows))
	}

	if len(rep.PipelineErrors) > 0 {
		fmt.Fprintln(out, "Pipeline errors:")
		for _, pe := range rep.PipelineErrors {
			if pe.ChunkID != "" {
				fmt.Fprintf(out, "  [%s] %s: %s\n", pe.Stage, pe.ChunkID, pe.Message)
			} else {
				fmt.Fprintf(out, "  [%s] %s\n", pe.Stage, pe.Message)
			}
		}
	}
}
