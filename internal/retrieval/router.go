package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/coursemind/coursemind/internal/errors"
)

const (
	// DefaultTopK is the number of ranked hits assembled into context.
	DefaultTopK = 5

	// DefaultAlpha balances vector similarity and keyword relevance.
	DefaultAlpha = 0.5

	// DefaultMaxContextLength bounds the assembled context in characters.
	DefaultMaxContextLength = 8000
)

// Comparison scoring weights. Speed dominates because interactive answers
// degrade sharply past a few seconds.
const (
	compareSpeedWeight  = 0.7
	compareResultWeight = 0.3
	compareSpeedCeiling = 5 * time.Second
	compareResultTarget = 10
)

// RouterConfig carries the router's defaults and the fallback strategy
// selection.
type RouterConfig struct {
	DefaultStrategy  Strategy
	Alpha            float64
	TopK             int
	MaxContextLength int
}

// Router is the retrieval entry point. It resolves the strategy, drives the
// executor/ranker/assembler pipeline, and records per-strategy statistics.
//
// Route never returns an error: failures surface in the result metadata, and
// a failing strategy falls back to the unified strategy once.
type Router struct {
	executor  *Executor
	ranker    *Ranker
	assembler *Assembler
	stats     *PerformanceStats
	config    RouterConfig
	logger    *slog.Logger
}

// NewRouter wires the retrieval pipeline together.
func NewRouter(executor *Executor, ranker *Ranker, assembler *Assembler, stats *PerformanceStats, cfg RouterConfig, logger *slog.Logger) *Router {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Alpha < 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = DefaultMaxContextLength
	}
	if stats == nil {
		stats = NewPerformanceStats()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		executor:  executor,
		ranker:    ranker,
		assembler: assembler,
		stats:     stats,
		config:    cfg,
		logger:    logger,
	}
}

// Stats exposes the router's performance counters.
func (r *Router) Stats() *PerformanceStats {
	return r.stats
}

// Route executes req under the requested strategy. An unknown strategy name
// falls back to the configured default; a strategy whose execution fails
// falls back to the unified strategy once. Total failure is reported through
// the result metadata, never as an error.
func (r *Router) Route(ctx context.Context, req SearchRequest) *StrategyResult {
	strategy := r.resolveStrategy(req.Strategy)

	result := r.runStrategy(ctx, strategy, req)
	if result.failed() && strategy != StrategyUnified {
		r.logger.Warn("strategy failed, falling back to unified",
			slog.String("strategy", strategy.String()),
			slog.String("query", req.Query))
		fallback := r.runStrategy(ctx, StrategyUnified, req)
		fallback.Meta.FellBack = true
		if fallback.failed() {
			fallback.Meta.Error = errors.ErrCodeTotalFailure
		}
		return fallback
	}
	if result.failed() {
		result.Meta.Error = errors.ErrCodeTotalFailure
	}
	return result
}

// runStrategy drives one pass of the pipeline and records its timing.
func (r *Router) runStrategy(ctx context.Context, strategy Strategy, req SearchRequest) *StrategyResult {
	start := time.Now()

	alpha := r.config.Alpha
	if req.Alpha != nil && *req.Alpha >= 0 && *req.Alpha <= 1 {
		alpha = *req.Alpha
	}
	if req.TopK <= 0 {
		req.TopK = r.config.TopK
	}
	if req.MaxContextLength <= 0 {
		req.MaxContextLength = r.config.MaxContextLength
	}

	result := &StrategyResult{Strategy: strategy}

	raw, collections, err := r.executor.Execute(ctx, strategy, req, alpha)
	elapsed := time.Since(start)
	result.Meta.SearchTime = elapsed
	result.Meta.Collections = collections

	if err != nil {
		r.logger.Warn("strategy execution failed",
			slog.String("strategy", strategy.String()),
			slog.String("error", err.Error()))
		result.Meta.Error = errors.GetCode(err)
		if ctx.Err() == nil {
			r.stats.Record(strategy, elapsed, 0)
		}
		return result
	}

	ranked := r.ranker.Fuse(raw, req.Query, alpha)
	if len(ranked) > req.TopK {
		ranked = ranked[:req.TopK]
	}
	bundle := r.assembler.Assemble(ranked, req.MaxContextLength)

	result.Hits = ranked
	result.Bundle = bundle
	result.Meta.ResultCount = len(ranked)

	// A canceled query's timing would skew averages.
	if ctx.Err() == nil {
		r.stats.Record(strategy, elapsed, len(ranked))
	}
	return result
}

// resolveStrategy parses an override name, falling back to the default on
// anything unknown.
func (r *Router) resolveStrategy(name string) Strategy {
	if name == "" {
		return r.config.DefaultStrategy
	}
	strategy, ok := ParseStrategy(name)
	if !ok {
		r.logger.Warn("unknown strategy, using default",
			slog.String("strategy", name),
			slog.String("default", r.config.DefaultStrategy.String()))
		return r.config.DefaultStrategy
	}
	return strategy
}

// failed reports whether the pass's execution failed. An empty result with
// no error is a search that found nothing, not a failure.
func (s *StrategyResult) failed() bool {
	return s.Meta.Error != ""
}

// ComparisonEntry is one strategy's outcome in a Compare run.
type ComparisonEntry struct {
	Strategy    string        `json:"strategy"`
	SearchTime  time.Duration `json:"search_time"`
	ResultCount int           `json:"result_count"`
	Score       float64       `json:"score"`
	Error       string        `json:"error,omitempty"`
}

// ComparisonReport ranks every strategy on the same query.
type ComparisonReport struct {
	Query       string            `json:"query"`
	Entries     []ComparisonEntry `json:"entries"`
	Recommended string            `json:"recommended"`
}

// Compare runs every strategy against the same query and scores each on a
// blend of speed and result volume. The highest-scoring strategy is
// recommended.
func (r *Router) Compare(ctx context.Context, query string) *ComparisonReport {
	report := &ComparisonReport{Query: query}

	best := -1.0
	for _, strategy := range AllStrategies() {
		req := SearchRequest{Query: query}
		result := r.runStrategy(ctx, strategy, req)

		entry := ComparisonEntry{
			Strategy:    strategy.String(),
			SearchTime:  result.Meta.SearchTime,
			ResultCount: result.Meta.ResultCount,
			Error:       result.Meta.Error,
		}
		entry.Score = compareScore(result.Meta.SearchTime, result.Meta.ResultCount)
		report.Entries = append(report.Entries, entry)

		if entry.Error == "" && entry.Score > best {
			best = entry.Score
			report.Recommended = entry.Strategy
		}
	}
	return report
}

// compareScore blends a speed score, which decays linearly to zero at the
// ceiling, with a result score that saturates at the target count.
func compareScore(elapsed time.Duration, results int) float64 {
	speed := 1 - elapsed.Seconds()/compareSpeedCeiling.Seconds()
	if speed < 0 {
		speed = 0
	}
	resultScore := float64(results) / compareResultTarget
	if resultScore > 1 {
		resultScore = 1
	}
	return compareSpeedWeight*speed + compareResultWeight*resultScore
}
