package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursemind/coursemind/internal/errors"
)

const (
	// DefaultPerCollectionCap bounds how many hits any single collection
	// may contribute before fusion.
	DefaultPerCollectionCap = 20

	// DefaultCollectionTimeout bounds a single collection search.
	DefaultCollectionTimeout = 3 * time.Second
)

// ExecutorConfig carries the collection topology and fan-out limits.
type ExecutorConfig struct {
	// Unified is the comprehensive collection holding every document.
	Unified string

	// Priority collections are always searched in keyword mode,
	// ahead of any keyword-routed collections.
	Priority []string

	// Fallback collections are used when classification yields nothing.
	Fallback []string

	// KeywordRoutes maps query substrings to the collections they select.
	KeywordRoutes map[string][]string

	// PerCollectionCap is the hard ceiling on hits per collection.
	PerCollectionCap int

	// CollectionTimeout bounds each collection search independently.
	CollectionTimeout time.Duration
}

// Executor resolves a strategy to a collection set and fans searches out
// across it, tolerating individual collection failures.
type Executor struct {
	searcher   CollectionSearcher
	classifier Classifier
	embedder   Embedder
	config     ExecutorConfig
	logger     *slog.Logger
}

// NewExecutor creates an executor. classifier and embedder may be nil;
// classification mode then always uses the fallback collections, and
// searches run keyword-only.
func NewExecutor(searcher CollectionSearcher, classifier Classifier, embedder Embedder, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if cfg.PerCollectionCap <= 0 {
		cfg.PerCollectionCap = DefaultPerCollectionCap
	}
	if cfg.CollectionTimeout <= 0 {
		cfg.CollectionTimeout = DefaultCollectionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		searcher:   searcher,
		classifier: classifier,
		embedder:   embedder,
		config:     cfg,
		logger:     logger,
	}
}

// Execute runs the strategy's collection searches for req and returns the
// combined raw hits plus the collections actually searched.
//
// Individual collection failures are logged and dropped. An error is
// returned only when the context is done or every collection failed.
func (e *Executor) Execute(ctx context.Context, strategy Strategy, req SearchRequest, alpha float64) ([]RawHit, []string, error) {
	collections := e.resolveCollections(ctx, strategy, req.Query)

	vector := req.Embedding
	if vector == nil && alpha > 0 && e.embedder != nil {
		embedded, err := e.embedder.Embed(ctx, req.Query)
		if err != nil {
			// Degrade to keyword-only scoring rather than failing the query.
			e.logger.Warn("query embedding failed, continuing keyword-only",
				slog.String("query", req.Query),
				slog.String("error", err.Error()))
		} else {
			vector = embedded
		}
	}

	limit := e.perCollectionLimit(req.TopK)

	hits, failed, err := e.fanOut(ctx, collections, req.Query, vector, limit)
	if err != nil {
		return nil, collections, err
	}

	if failed == len(collections) && len(collections) > 0 {
		return nil, collections, errors.New(errors.ErrCodeCollectionSearch,
			"all collection searches failed", nil).
			WithDetail("collections", strings.Join(collections, ","))
	}

	// Keyword routing can be too narrow; widen to the unified collection
	// once when the routed collections came up short.
	if strategy == StrategyKeywordRouted && len(hits) < req.TopK && e.config.Unified != "" && !contains(collections, e.config.Unified) {
		extra, _, extraErr := e.fanOut(ctx, []string{e.config.Unified}, req.Query, vector, limit)
		if extraErr != nil {
			return nil, collections, extraErr
		}
		if len(extra) > 0 {
			hits = append(hits, extra...)
			collections = append(collections, e.config.Unified)
		}
	}

	return hits, collections, nil
}

// resolveCollections maps a strategy and query to the collections to search.
func (e *Executor) resolveCollections(ctx context.Context, strategy Strategy, query string) []string {
	switch strategy {
	case StrategyClassification:
		return e.classify(ctx, query)
	case StrategyKeywordRouted:
		return e.routeByKeyword(query)
	default:
		return []string{e.config.Unified}
	}
}

func (e *Executor) classify(ctx context.Context, query string) []string {
	if e.classifier == nil {
		return append([]string(nil), e.config.Fallback...)
	}
	collections, err := e.classifier.Classify(ctx, query)
	if err != nil {
		e.logger.Warn("classification failed, using fallback collections",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return append([]string(nil), e.config.Fallback...)
	}
	if len(collections) == 0 {
		return append([]string(nil), e.config.Fallback...)
	}
	return collections
}

// routeByKeyword selects the priority collections plus every collection
// whose route keyword appears in the query. Order is preserved and
// duplicates keep their first position.
func (e *Executor) routeByKeyword(query string) []string {
	lower := strings.ToLower(query)

	keywords := make([]string, 0, len(e.config.KeywordRoutes))
	for keyword := range e.config.KeywordRoutes {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	var selected []string
	selected = append(selected, e.config.Priority...)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			selected = append(selected, e.config.KeywordRoutes[keyword]...)
		}
	}

	deduped := dedupeStrings(selected)
	if len(deduped) == 0 {
		return append([]string(nil), e.config.Fallback...)
	}
	return deduped
}

// fanOut searches the collections concurrently, each under its own timeout.
// Failed collections are counted and dropped. Each collection's hits keep
// its position in the collection list, so higher-priority collections stay
// ahead on score ties downstream.
func (e *Executor) fanOut(ctx context.Context, collections []string, query string, vector []float32, limit int) ([]RawHit, int, error) {
	g, gctx := errgroup.WithContext(ctx)

	results := make([][]RawHit, len(collections))
	var (
		mu     sync.Mutex
		failed int
	)

	for i, collection := range collections {
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(gctx, e.config.CollectionTimeout)
			defer cancel()

			found, err := e.searcher.Search(searchCtx, collection, query, vector, limit)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("collection search failed",
					slog.String("collection", collection),
					slog.String("error", err.Error()))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			if len(found) > limit {
				found = found[:limit]
			}
			results[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, failed, errors.Wrap(errors.ErrCodeCollectionSearch, err)
	}

	var hits []RawHit
	for _, r := range results {
		hits = append(hits, r...)
	}
	return hits, failed, nil
}

// perCollectionLimit widens topK so fusion has candidates to rerank,
// capped so a single large collection cannot dominate.
func (e *Executor) perCollectionLimit(topK int) int {
	limit := 2 * topK
	if limit > e.config.PerCollectionCap {
		limit = e.config.PerCollectionCap
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
