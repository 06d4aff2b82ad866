package embed

import (
	"context"
	"log/slog"
	"time"
)

// FactoryConfig selects and configures the embedder backend.
type FactoryConfig struct {
	// Backend is "ollama", "static", or "" for ollama with static
	// fallback.
	Backend string

	Host       string
	Model      string
	Dimensions int
	Timeout    time.Duration
	CacheSize  int
}

// New builds the configured embedder wrapped in an LRU cache. When Ollama
// is unreachable the static embedder takes over so retrieval keeps
// working, with degraded vector quality.
func New(ctx context.Context, cfg FactoryConfig, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Embedder
	switch cfg.Backend {
	case "static":
		inner = NewStaticEmbedder()

	default:
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			if cfg.Backend == "ollama" {
				// Explicitly requested, so don't mask the failure.
				return nil, err
			}
			logger.Warn("ollama unavailable, using static embeddings",
				slog.String("error", err.Error()))
			inner = NewStaticEmbedder()
		} else {
			inner = ollama
		}
	}

	logger.Info("embedder ready",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
