// Package retrieval implements the multi-collection retrieval pipeline:
// strategy routing, fan-out search, score fusion, deduplication, and
// budget-bounded context assembly.
package retrieval

import (
	"context"
	"strings"
	"time"
)

// Strategy is the closed set of collection-selection approaches.
type Strategy int

const (
	// StrategyClassification asks the classifier which collections are
	// relevant and searches only those.
	StrategyClassification Strategy = iota

	// StrategyKeywordRouted routes by a static keyword table unioned with
	// priority collections, expanding to the unified collection on thin
	// results.
	StrategyKeywordRouted

	// StrategyUnified searches the single pre-merged comprehensive
	// collection.
	StrategyUnified
)

// String returns the canonical strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyClassification:
		return "classification"
	case StrategyKeywordRouted:
		return "keyword"
	case StrategyUnified:
		return "unified"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a strategy name to its variant. The second return is
// false for unrecognized names; callers fall back to their configured
// default rather than erroring.
func ParseStrategy(name string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "classification":
		return StrategyClassification, true
	case "keyword", "keyword-routed", "enhanced":
		return StrategyKeywordRouted, true
	case "unified":
		return StrategyUnified, true
	default:
		return StrategyUnified, false
	}
}

// AllStrategies lists every strategy, in comparison/display order.
func AllStrategies() []Strategy {
	return []Strategy{StrategyClassification, StrategyKeywordRouted, StrategyUnified}
}

// SearchMode tags how a hit's relevance was computed.
type SearchMode string

const (
	ModeKeyword SearchMode = "keyword"
	ModeVector  SearchMode = "vector"
	ModeHybrid  SearchMode = "hybrid"
)

// ContentType labels the kind of content a document holds. Unknown types
// are legal and receive no boost.
type ContentType string

const (
	ContentTypeDiscussion ContentType = "discussion"
	ContentTypeOverview   ContentType = "overview"
	ContentTypeMisc       ContentType = "misc"
	ContentTypeReference  ContentType = "reference"
)

// SearchRequest is a single retrieval request, created per incoming
// question and consumed once.
type SearchRequest struct {
	// Query is the free-text question. Must be non-empty.
	Query string

	// Embedding is an optional precomputed query embedding. When nil the
	// executor asks the embedding collaborator (if alpha > 0).
	Embedding []float32

	// Strategy optionally overrides the configured default. Invalid values
	// silently fall back to the default.
	Strategy string

	// Alpha optionally overrides the configured vector weight (0.0-1.0).
	Alpha *float64

	// TopK optionally overrides the configured result count.
	TopK int

	// MaxContextLength optionally overrides the configured context budget.
	MaxContextLength int
}

// RawHit is a candidate document returned by one collection search.
type RawHit struct {
	// Collection is the id of the collection that returned this hit.
	Collection string

	// Content is the document text.
	Content string

	// URL and Title are optional citation metadata.
	URL   string
	Title string

	// ContentType tags the document kind for boosting.
	ContentType ContentType

	// TextMatchScore is the non-negative keyword relevance from the
	// search backend.
	TextMatchScore int64

	// VectorDistance is the vector distance in [0, inf), nil for
	// keyword-only hits.
	VectorDistance *float64
}

// RankedHit is a RawHit with its fused relevance score.
// Relevance is deterministic given (alpha, text score, distance, boosts).
type RankedHit struct {
	RawHit

	// Relevance is the final boosted relevance score.
	Relevance float64

	// Mode records which signals produced the score.
	Mode SearchMode
}

// Excerpt is one cited entry in a context bundle.
type Excerpt struct {
	// Label is the citation label, e.g. "[1]".
	Label string

	// Collection is the source collection id.
	Collection string

	// URL and Title survive even when content is truncated.
	URL   string
	Title string

	// Content is the (possibly truncated) excerpt text.
	Content string

	// Truncated is true when Content was cut for budget.
	Truncated bool
}

// ContextBundle is the final deduplicated, budget-bounded context handed to
// the answer generator.
type ContextBundle struct {
	// Excerpts in rank order.
	Excerpts []Excerpt

	// Context is the concatenated excerpt text.
	Context string

	// Length is len(Context) in bytes.
	Length int

	// Sources lists distinct source identifiers for citation, in first-use
	// order.
	Sources []string

	// Truncated is true when any content was cut or any hit dropped purely
	// for budget.
	Truncated bool
}

// Metadata describes how a routed request went.
type Metadata struct {
	// SearchTime is the wall time of the winning attempt.
	SearchTime time.Duration

	// ResultCount is the number of ranked hits before assembly.
	ResultCount int

	// Collections lists the collections actually searched.
	Collections []string

	// FellBack is true when the unified fallback was dispatched.
	FellBack bool

	// Error is non-empty when all attempts failed; it distinguishes
	// "search infrastructure failed" from "no relevant content found".
	Error string
}

// StrategyResult is the outcome of routing one request.
type StrategyResult struct {
	// Strategy is the strategy that actually executed last.
	Strategy Strategy

	// Hits is the ranked hit list (already capped at top-k).
	Hits []RankedHit

	// Bundle is the assembled context.
	Bundle ContextBundle

	// Meta carries timing, counts, and error state.
	Meta Metadata
}

// CollectionSearcher issues one query against one named collection,
// optionally combining keyword and vector signals. Implementations may
// fail per call; callers drop the failing collection and continue.
type CollectionSearcher interface {
	Search(ctx context.Context, collection, query string, vector []float32, topK int) ([]RawHit, error)
}

// Classifier maps a query to the collections relevant to it. An empty list
// or an error both mean "no classification available".
type Classifier interface {
	Classify(ctx context.Context, query string) ([]string, error)
}

// Embedder produces a query embedding. Failure triggers keyword-only
// search for any collection that would otherwise have used it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
