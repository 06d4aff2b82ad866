package cmd

import (
	"context"
	"log/slog"

	"github.com/coursemind/coursemind/internal/answer"
	"github.com/coursemind/coursemind/internal/classify"
	"github.com/coursemind/coursemind/internal/collections"
	"github.com/coursemind/coursemind/internal/config"
	"github.com/coursemind/coursemind/internal/embed"
	"github.com/coursemind/coursemind/internal/retrieval"
)

// pipeline bundles the wired retrieval stack for one CLI invocation.
type pipeline struct {
	router    *retrieval.Router
	generator answer.Generator
	manager   *collections.Manager
	embedder  embed.Embedder
}

// pipelineOptions tweaks wiring per command.
type pipelineOptions struct {
	// watch reloads collections when the indexer rewrites them. Only the
	// long-running serve command wants this.
	watch bool
}

// buildPipeline wires config into the full retrieval stack: collections
// manager, embedder, classifier, executor, ranker, assembler, router, and
// answer generator.
func buildPipeline(ctx context.Context, cfg *config.Config, opts pipelineOptions) (*pipeline, error) {
	logger := slog.Default()

	embedder, err := embed.New(ctx, embed.FactoryConfig{
		Backend:    cfg.Embeddings.Provider,
		Host:       cfg.Embeddings.OllamaHost,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		Timeout:    cfg.Embeddings.Timeout,
		CacheSize:  cfg.Embeddings.CacheSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	// Vector dimensions follow the embedder actually in use, which may be
	// the static fallback rather than the configured Ollama model.
	manager, err := collections.NewManager(collections.ManagerConfig{
		DataDir:          cfg.Collections.DataDir,
		TypoTolerance:    cfg.Collections.TypoTolerance,
		VectorDimensions: embedder.Dimensions(),
		WatchForUpdates:  opts.watch,
	}, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	classifier := buildClassifier(ctx, cfg, manager)

	executor := retrieval.NewExecutor(manager, classifier, embedder, retrieval.ExecutorConfig{
		Unified:           cfg.Collections.Unified,
		Priority:          cfg.Collections.Priority,
		Fallback:          cfg.Collections.Fallback,
		KeywordRoutes:     cfg.Collections.KeywordRoutes,
		PerCollectionCap:  cfg.Retrieval.PerCollectionCap,
		CollectionTimeout: cfg.Retrieval.CollectionTimeout,
	}, logger)

	ranker := retrieval.NewRanker(retrieval.RankerConfig{
		NormalizationConstant: cfg.Retrieval.NormalizationConstant,
		Boosts: retrieval.BoostTable{
			Discussion:   cfg.Retrieval.Boosts.Discussion,
			Overview:     cfg.Retrieval.Boosts.Overview,
			Reference:    cfg.Retrieval.Boosts.Reference,
			ProblemTerms: cfg.Retrieval.Boosts.ProblemTerms,
		},
	})

	assembler := retrieval.NewAssembler(retrieval.AssemblerConfig{
		FingerprintLength: cfg.Retrieval.FingerprintLength,
		MinExcerptLength:  cfg.Retrieval.MinExcerptLength,
	})

	defaultStrategy, _ := retrieval.ParseStrategy(cfg.Retrieval.DefaultStrategy)
	router := retrieval.NewRouter(executor, ranker, assembler, retrieval.NewPerformanceStats(), retrieval.RouterConfig{
		DefaultStrategy:  defaultStrategy,
		Alpha:            cfg.Retrieval.Alpha,
		TopK:             cfg.Retrieval.TopK,
		MaxContextLength: cfg.Retrieval.MaxContextLength,
	}, logger)

	generator := answer.NewOllamaGenerator(answer.Config{
		Host:    cfg.Answer.OllamaHost,
		Model:   cfg.Answer.Model,
		Timeout: cfg.Answer.Timeout,
	})

	return &pipeline{
		router:    router,
		generator: generator,
		manager:   manager,
		embedder:  embedder,
	}, nil
}

// buildClassifier assembles the hybrid classifier. Valid target collections
// come from what is actually indexed, so the LLM cannot route to a
// collection that does not exist.
func buildClassifier(ctx context.Context, cfg *config.Config, manager *collections.Manager) retrieval.Classifier {
	var names []string
	if infos, err := manager.Collections(ctx); err == nil {
		for _, info := range infos {
			if info.Name != cfg.Collections.Unified {
				names = append(names, info.Name)
			}
		}
	}

	ccfg := classify.Config{
		Model:       cfg.Classifier.Model,
		Host:        cfg.Classifier.OllamaHost,
		Timeout:     cfg.Classifier.Timeout,
		CacheSize:   cfg.Classifier.CacheSize,
		Collections: names,
		Routes:      cfg.Collections.KeywordRoutes,
	}

	var llm *classify.LLMClassifier
	if cfg.Classifier.Provider == "ollama" {
		llm = classify.NewLLMClassifier(ccfg)
	}
	return classify.NewHybridClassifier(llm, ccfg)
}

// Close releases pipeline resources.
func (p *pipeline) Close() {
	if p.embedder != nil {
		_ = p.embedder.Close()
	}
	if p.manager != nil {
		_ = p.manager.Close()
	}
}
