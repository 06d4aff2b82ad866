package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursemind/coursemind/internal/retrieval"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	strategy   string
	alpha      float64
	limit      int
	maxContext int
	format     string // "text", "json"
}

// searchResultOutput is one result row in JSON output.
type searchResultOutput struct {
	Collection  string  `json:"collection"`
	Title       string  `json:"title,omitempty"`
	URL         string  `json:"url,omitempty"`
	Content     string  `json:"content"`
	ContentType string  `json:"content_type,omitempty"`
	Relevance   float64 `json:"relevance"`
	Mode        string  `json:"mode"`
}

// searchOutput is the JSON output format for search.
type searchOutput struct {
	Query       string               `json:"query"`
	Strategy    string               `json:"strategy"`
	Collections []string             `json:"collections"`
	SearchTime  time.Duration        `json:"search_time"`
	FellBack    bool                 `json:"fell_back,omitempty"`
	Results     []searchResultOutput `json:"results"`
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed course corpus",
		Long: `Search the indexed course corpus and show ranked excerpts.

Unlike 'ask', this skips answer generation and shows what the
retrieval pipeline found, with collection, relevance, and scoring
mode for each hit.

Examples:
  coursemind search "docker compose"
  coursemind search "gradient descent" --strategy unified --limit 10
  coursemind search "deadline" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "Retrieval strategy: classification, keyword, unified")
	cmd.Flags().Float64VarP(&opts.alpha, "alpha", "a", -1, "Semantic weight 0-1 (default from config)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().IntVar(&opts.maxContext, "max-context", 0, "Context budget in characters (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipe, err := buildPipeline(ctx, cfg, pipelineOptions{})
	if err != nil {
		return err
	}
	defer pipe.Close()

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))

	req := retrieval.SearchRequest{
		Query:            query,
		Strategy:         opts.strategy,
		TopK:             opts.limit,
		MaxContextLength: opts.maxContext,
	}
	if opts.alpha >= 0 && opts.alpha <= 1 {
		req.Alpha = &opts.alpha
	}

	result := pipe.router.Route(ctx, req)

	out := searchOutput{
		Query:       query,
		Strategy:    result.Strategy.String(),
		Collections: result.Meta.Collections,
		SearchTime:  result.Meta.SearchTime,
		FellBack:    result.Meta.FellBack,
		Results:     make([]searchResultOutput, 0, len(result.Hits)),
	}
	for _, hit := range result.Hits {
		out.Results = append(out.Results, searchResultOutput{
			Collection:  hit.Collection,
			Title:       hit.Title,
			URL:         hit.URL,
			Content:     hit.Content,
			ContentType: string(hit.ContentType),
			Relevance:   hit.Relevance,
			Mode:        string(hit.Mode),
		})
	}

	if result.Meta.Error != "" {
		return fmt.Errorf("search failed: %s", result.Meta.Error)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	return printSearchText(cmd, out)
}

func printSearchText(cmd *cobra.Command, out searchOutput) error {
	w := newWriter(cmd)

	if len(out.Results) == 0 {
		w.Line("No results.")
		return nil
	}

	w.Linef("%d results (%s, %v)", len(out.Results), out.Strategy, out.SearchTime.Round(time.Millisecond))
	if out.FellBack {
		w.Warning("requested strategy failed, results come from the unified index")
	}
	w.Newline()

	styles := w.Styles()
	for i, r := range out.Results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		w.Linef("%s %s  %s",
			styles.Header.Render(fmt.Sprintf("%d.", i+1)),
			title,
			styles.Score.Render(fmt.Sprintf("%.3f %s", r.Relevance, r.Mode)))
		w.Linef("   %s", styles.Source.Render(sourceLine(r)))
		w.Linef("   %s", snippet(r.Content, 200))
		w.Newline()
	}
	return nil
}

// sourceLine renders "collection" or "collection - url".
func sourceLine(r searchResultOutput) string {
	if r.URL == "" {
		return r.Collection
	}
	return r.Collection + " - " + r.URL
}

// snippet truncates content to limit runes on a single line.
func snippet(content string, limit int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
