package classify

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coursemind/coursemind/internal/retrieval"
)

// Default classifier configuration values.
const (
	DefaultModel     = "llama3.2:1b"
	DefaultTimeout   = 2 * time.Second
	DefaultCacheSize = 10000
)

// Config holds classifier configuration.
type Config struct {
	// Model is the Ollama model used for classification.
	Model string

	// Host is the Ollama API base URL.
	Host string

	// Timeout bounds one classification call.
	Timeout time.Duration

	// CacheSize is the LRU cache capacity for classification results.
	CacheSize int

	// Collections are the valid collection names the classifier may
	// return. Anything else in the model output is discarded.
	Collections []string

	// Routes is the keyword table used by the pattern fallback.
	Routes map[string][]string
}

// HybridClassifier maps a query to target collections. It tries the LLM
// first and falls back to keyword patterns; results are cached.
type HybridClassifier struct {
	llm      *LLMClassifier
	patterns *PatternClassifier
	cache    *lru.Cache[string, []string]
}

var _ retrieval.Classifier = (*HybridClassifier)(nil)

// NewHybridClassifier creates a classifier. llm may be nil; only the
// pattern fallback is used then.
func NewHybridClassifier(llm *LLMClassifier, cfg Config) *HybridClassifier {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []string](cacheSize)
	return &HybridClassifier{
		llm:      llm,
		patterns: NewPatternClassifier(cfg.Routes),
		cache:    cache,
	}
}

// Classify returns the collections to search for a query. An empty result
// means the caller should use its fallback collections.
func (h *HybridClassifier) Classify(ctx context.Context, query string) ([]string, error) {
	cacheKey := normalizeQuery(query)
	if cacheKey == "" {
		return nil, nil
	}

	if collections, ok := h.cache.Get(cacheKey); ok {
		return collections, nil
	}

	if h.llm != nil {
		collections, err := h.llm.Classify(ctx, query)
		if err == nil && len(collections) > 0 {
			h.cache.Add(cacheKey, collections)
			return collections, nil
		}
		// LLM failed or gave nothing usable, fall through to patterns.
	}

	collections := h.patterns.Classify(query)
	if len(collections) > 0 {
		h.cache.Add(cacheKey, collections)
	}
	return collections, nil
}

// normalizeQuery lowers and collapses whitespace for cache keys.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
