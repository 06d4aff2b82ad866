package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursemind/coursemind/internal/retrieval"
)

// statsStrategyOutput is one per-strategy row in stats output.
type statsStrategyOutput struct {
	Strategy       string  `json:"strategy"`
	Calls          int64   `json:"calls"`
	AvgTimeMs      float64 `json:"avg_time_ms"`
	AvgResultCount float64 `json:"avg_result_count"`
}

// statsCollectionOutput is one collection row in stats output.
type statsCollectionOutput struct {
	Name     string `json:"name"`
	DocCount int    `json:"doc_count"`
}

// statsOutput is the JSON output format for stats.
type statsOutput struct {
	Strategies  []statsStrategyOutput   `json:"strategies"`
	Collections []statsCollectionOutput `json:"collections"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and retrieval statistics",
		Long: `Display the indexed collections with document counts, plus
per-strategy retrieval performance for this process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipe, err := buildPipeline(ctx, cfg, pipelineOptions{})
	if err != nil {
		return err
	}
	defer pipe.Close()

	infos, err := pipe.manager.Collections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	out := statsOutput{
		Strategies:  buildStrategyRows(pipe.router.Stats().Snapshot()),
		Collections: make([]statsCollectionOutput, 0, len(infos)),
	}
	for _, info := range infos {
		out.Collections = append(out.Collections, statsCollectionOutput{
			Name:     info.Name,
			DocCount: info.DocCount,
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := newWriter(cmd)
	w.Header("Collections")
	if len(out.Collections) == 0 {
		w.Line("  none indexed. Run 'coursemind index' first.")
	}
	for _, c := range out.Collections {
		w.Linef("  %-24s %6d docs", c.Name, c.DocCount)
	}
	w.Newline()

	if len(out.Strategies) > 0 {
		w.Header("Strategies")
		for _, s := range out.Strategies {
			w.Linef("  %-16s %5d calls  %8.1fms avg  %6.1f results avg",
				s.Strategy, s.Calls, s.AvgTimeMs, s.AvgResultCount)
		}
	}
	return nil
}

// buildStrategyRows converts a stats snapshot to sorted output rows.
func buildStrategyRows(snapshot map[string]retrieval.StrategyStats) []statsStrategyOutput {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]statsStrategyOutput, 0, len(names))
	for _, name := range names {
		st := snapshot[name]
		avgMs := 0.0
		if st.Calls > 0 {
			avgMs = float64(st.TotalTime) / float64(st.Calls) / float64(time.Millisecond)
		}
		rows = append(rows, statsStrategyOutput{
			Strategy:       name,
			Calls:          st.Calls,
			AvgTimeMs:      avgMs,
			AvgResultCount: st.AvgResultCount,
		})
	}
	return rows
}
