package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coursemind/coursemind/internal/retrieval"
	"github.com/coursemind/coursemind/internal/ui"
)

// askOptions holds CLI flags for ask.
type askOptions struct {
	strategy   string
	alpha      float64
	topK       int
	maxContext int
	format     string // "text", "json"
}

// askOutput is the JSON output format for ask.
type askOutput struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	Strategy    string   `json:"strategy"`
	Collections []string `json:"collections"`
	FellBack    bool     `json:"fell_back,omitempty"`
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the course",
		Long: `Ask a question about the course and get a grounded, cited answer.

Retrieves relevant excerpts from the indexed corpus, then generates an
answer with a local Ollama model. Citations like [1] refer to the
listed sources.

Examples:
  coursemind ask "when is homework 3 due?"
  coursemind ask "how do I set up docker?" --strategy keyword
  coursemind ask "what is spark?" --alpha 0.8 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return runAsk(cmd.Context(), cmd, question, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "Retrieval strategy: classification, keyword, unified")
	cmd.Flags().Float64VarP(&opts.alpha, "alpha", "a", -1, "Semantic weight 0-1 (default from config)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of excerpts to retrieve (default from config)")
	cmd.Flags().IntVar(&opts.maxContext, "max-context", 0, "Context budget in characters (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts askOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipe, err := buildPipeline(ctx, cfg, pipelineOptions{})
	if err != nil {
		return err
	}
	defer pipe.Close()

	slog.Info("ask_started", slog.String("question", question), slog.String("strategy", opts.strategy))

	req := retrieval.SearchRequest{
		Query:            question,
		Strategy:         opts.strategy,
		TopK:             opts.topK,
		MaxContextLength: opts.maxContext,
	}
	if opts.alpha >= 0 && opts.alpha <= 1 {
		req.Alpha = &opts.alpha
	}

	result := pipe.router.Route(ctx, req)
	if result.Meta.Error != "" {
		return fmt.Errorf("retrieval failed: %s", result.Meta.Error)
	}

	text, err := pipe.generator.Generate(ctx, question, result.Bundle.Context)
	if err != nil {
		return fmt.Errorf("answer generation failed: %w", err)
	}

	out := askOutput{
		Question:    question,
		Answer:      text,
		Sources:     result.Bundle.Sources,
		Strategy:    result.Strategy.String(),
		Collections: result.Meta.Collections,
		FellBack:    result.Meta.FellBack,
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	return printAskText(cmd, out)
}

func printAskText(cmd *cobra.Command, out askOutput) error {
	w := newWriter(cmd)

	w.Header("Answer")
	w.Line(out.Answer)
	w.Newline()

	if len(out.Sources) > 0 {
		w.Header("Sources")
		for i, src := range out.Sources {
			w.Linef("  [%d] %s", i+1, src)
		}
		w.Newline()
	}

	w.Label("strategy", out.Strategy)
	if out.FellBack {
		w.Warning("requested strategy failed, answered from the unified index")
	}
	return nil
}

// newWriter builds a UI writer honoring the --no-color flag.
func newWriter(cmd *cobra.Command) *ui.Writer {
	if noColor {
		return ui.NewPlain(cmd.OutOrStdout())
	}
	return ui.New(cmd.OutOrStdout())
}
