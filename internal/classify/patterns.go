package classify

import (
	"sort"
	"strings"
)

// PatternClassifier maps query substrings onto collections using a static
// keyword table. It is the offline fallback when the LLM is unavailable.
type PatternClassifier struct {
	routes   map[string][]string
	keywords []string
}

// NewPatternClassifier creates a pattern classifier over a keyword table.
func NewPatternClassifier(routes map[string][]string) *PatternClassifier {
	keywords := make([]string, 0, len(routes))
	for keyword := range routes {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	return &PatternClassifier{routes: routes, keywords: keywords}
}

// Classify returns the collections whose keywords appear in the query, in
// stable keyword order. No match returns nil.
func (p *PatternClassifier) Classify(query string) []string {
	lower := strings.ToLower(query)

	var collections []string
	seen := make(map[string]struct{})
	for _, keyword := range p.keywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		for _, collection := range p.routes[keyword] {
			if _, dup := seen[collection]; dup {
				continue
			}
			seen[collection] = struct{}{}
			collections = append(collections, collection)
		}
	}
	return collections
}
