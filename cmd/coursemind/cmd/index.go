package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursemind/coursemind/internal/collections"
	"github.com/coursemind/coursemind/internal/embed"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	noEmbeddings bool
	prune        bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <documents.json>...",
		Short: "Index course documents into the corpus",
		Long: `Index course documents into the searchable corpus.

Each input file holds documents as a JSON array or as JSON Lines,
with id, collection, and content fields (url, title, and
content_type are optional). Every document is also mirrored into
the unified collection so the unified strategy sees everything.

Examples:
  coursemind index faq.json lectures.jsonl
  coursemind index dump.json --no-embeddings
  coursemind index full-corpus.json --prune`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noEmbeddings, "no-embeddings", false, "Skip vector indexing (keyword search only)")
	cmd.Flags().BoolVar(&opts.prune, "prune", false, "Remove previously indexed documents missing from this run's input")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, paths []string, opts indexOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := newWriter(cmd)

	var docs []collections.Document
	for _, path := range paths {
		loaded, err := collections.LoadDocuments(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		docs = append(docs, loaded...)
		w.Linef("loaded %d documents from %s", len(loaded), path)
	}

	ixCfg := collections.IndexerConfig{
		DataDir:          cfg.Collections.DataDir,
		Unified:          cfg.Collections.Unified,
		VectorDimensions: cfg.Embeddings.Dimensions,
		Prune:            opts.prune,
	}

	var embedder embed.Embedder
	if opts.noEmbeddings {
		ixCfg.VectorDimensions = 0
	} else {
		embedder, err = embed.New(ctx, embed.FactoryConfig{
			Backend:    cfg.Embeddings.Provider,
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			Timeout:    cfg.Embeddings.Timeout,
			CacheSize:  cfg.Embeddings.CacheSize,
		}, slog.Default())
		if err != nil {
			return err
		}
		defer func() { _ = embedder.Close() }()
		// Follow the embedder actually in use, not the configured model.
		ixCfg.VectorDimensions = embedder.Dimensions()
	}

	indexer := collections.NewIndexer(ixCfg, embedder, slog.Default())

	start := time.Now()
	report, err := indexer.Index(ctx, docs)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	w.Newline()
	w.Linef("indexed %d documents into %d collections in %v",
		report.Total, len(report.Collections), time.Since(start).Round(time.Millisecond))
	if report.Pruned > 0 {
		w.Linef("pruned %d stale documents", report.Pruned)
	}
	if !opts.noEmbeddings {
		w.Linef("embedded %d documents", report.Embedded)
		if report.EmbedFailed > 0 {
			w.Warning(fmt.Sprintf("%d documents could not be embedded and are keyword-only", report.EmbedFailed))
		}
	}
	names := make([]string, 0, len(report.Collections))
	for name := range report.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w.Linef("  %-24s %6d docs", name, report.Collections[name])
	}
	return nil
}
