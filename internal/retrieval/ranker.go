package retrieval

import (
	"sort"
	"strings"
)

// DefaultNormalizationConstant divides raw text-match scores into ~[0,1].
// Backend text scores for strong matches land near 1,000,000.
const DefaultNormalizationConstant = 1_000_000

// problemTerms mark queries where the asker is stuck on something; hits
// from discussion content get an extra boost for these.
var problemTerms = []string{"help", "error", "stuck", "issue"}

// BoostTable holds content-type relevance multipliers.
type BoostTable struct {
	// Discussion boosts Q&A/forum content (highest).
	Discussion float64
	// Overview boosts course-overview and misc content (moderate).
	Overview float64
	// Reference boosts reference/technical content (slight).
	Reference float64
	// ProblemTerms is applied on top of Discussion for problem queries.
	ProblemTerms float64
}

// DefaultBoostTable returns the standard multipliers.
func DefaultBoostTable() BoostTable {
	return BoostTable{
		Discussion:   1.5,
		Overview:     1.2,
		Reference:    1.1,
		ProblemTerms: 1.3,
	}
}

// RankerConfig configures score fusion.
type RankerConfig struct {
	// NormalizationConstant divides raw text-match scores (default: 1e6).
	NormalizationConstant float64

	// Boosts are the content-type multipliers.
	Boosts BoostTable
}

// DefaultRankerConfig returns the standard fusion configuration.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		NormalizationConstant: DefaultNormalizationConstant,
		Boosts:                DefaultBoostTable(),
	}
}

// Ranker fuses raw per-collection hits into one ordered, scored list.
// Fuse is pure: no I/O, no randomness, deterministic for a given input.
type Ranker struct {
	config RankerConfig
}

// NewRanker creates a ranker, applying defaults for zero config values.
func NewRanker(cfg RankerConfig) *Ranker {
	if cfg.NormalizationConstant <= 0 {
		cfg.NormalizationConstant = DefaultNormalizationConstant
	}
	if cfg.Boosts == (BoostTable{}) {
		cfg.Boosts = DefaultBoostTable()
	}
	return &Ranker{config: cfg}
}

// Fuse scores and orders hits. Alpha weights vector similarity against
// normalized text score; hits without a vector distance ignore alpha
// entirely. Ties keep stable input order, so equal-score hits from
// earlier-searched collections stay earlier.
func (r *Ranker) Fuse(hits []RawHit, query string, alpha float64) []RankedHit {
	if len(hits) == 0 {
		return []RankedHit{}
	}

	problem := isProblemQuery(query)

	ranked := make([]RankedHit, len(hits))
	for i, h := range hits {
		score, mode := r.baseScore(h, alpha)
		score *= r.boost(h.ContentType, problem)
		ranked[i] = RankedHit{RawHit: h, Relevance: score, Mode: mode}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})

	return ranked
}

// baseScore blends normalized text score and vector similarity.
func (r *Ranker) baseScore(h RawHit, alpha float64) (float64, SearchMode) {
	text := float64(h.TextMatchScore) / r.config.NormalizationConstant

	if h.VectorDistance == nil {
		return text, ModeKeyword
	}

	dist := *h.VectorDistance
	if dist > 1.0 {
		dist = 1.0
	}
	sim := 1.0 - dist

	mode := ModeHybrid
	if alpha >= 1.0 {
		mode = ModeVector
	}
	return alpha*sim + (1-alpha)*text, mode
}

// boost returns the content-type multiplier, including the problem-query
// boost for discussion content.
func (r *Ranker) boost(ct ContentType, problem bool) float64 {
	b := r.config.Boosts
	switch ct {
	case ContentTypeDiscussion:
		if problem {
			return b.Discussion * b.ProblemTerms
		}
		return b.Discussion
	case ContentTypeOverview, ContentTypeMisc:
		return b.Overview
	case ContentTypeReference:
		return b.Reference
	default:
		return 1.0
	}
}

// isProblemQuery reports whether the query contains a problem-indicating term.
func isProblemQuery(query string) bool {
	q := strings.ToLower(query)
	for _, term := range problemTerms {
		if strings.Contains(q, term) {
			return true
		}
	}
	return false
}
