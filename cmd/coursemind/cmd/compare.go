package cmd

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newCompareCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "compare <query>",
		Short: "Compare retrieval strategies on one query",
		Long: `Run every retrieval strategy against the same query and score each
on speed and result volume. The highest-scoring strategy is
recommended as the default for this corpus.

Examples:
  coursemind compare "how do I submit homework 2?"
  coursemind compare "docker networking" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runCompare(cmd.Context(), cmd, query, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runCompare(ctx context.Context, cmd *cobra.Command, query string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipe, err := buildPipeline(ctx, cfg, pipelineOptions{})
	if err != nil {
		return err
	}
	defer pipe.Close()

	report := pipe.router.Compare(ctx, query)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := newWriter(cmd)
	w.Header("Strategy comparison")
	w.Label("query", report.Query)
	w.Newline()

	for _, entry := range report.Entries {
		marker := "  "
		if entry.Strategy == report.Recommended {
			marker = w.Styles().Success.Render("* ")
		}
		if entry.Error != "" {
			w.Linef("%s%-16s failed: %s", marker, entry.Strategy, entry.Error)
			continue
		}
		w.Linef("%s%-16s score %.3f  %3d results  %v",
			marker, entry.Strategy, entry.Score, entry.ResultCount,
			entry.SearchTime.Round(time.Millisecond))
	}
	w.Newline()
	w.Label("recommended", report.Recommended)
	return nil
}
