package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Assembler defaults.
const (
	// DefaultFingerprintLength is the normalized prefix length hashed for
	// duplicate detection.
	DefaultFingerprintLength = 200

	// DefaultMinExcerptLength is the smallest partial excerpt worth
	// emitting when the budget is nearly spent.
	DefaultMinExcerptLength = 100
)

// AssemblerConfig configures deduplication and budget packing.
type AssemblerConfig struct {
	FingerprintLength int
	MinExcerptLength  int
}

// DefaultAssemblerConfig returns the standard assembler configuration.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		FingerprintLength: DefaultFingerprintLength,
		MinExcerptLength:  DefaultMinExcerptLength,
	}
}

// Assembler turns a ranked hit list into a bounded, cited context bundle.
type Assembler struct {
	config AssemblerConfig
}

// NewAssembler creates an assembler, applying defaults for zero config values.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.FingerprintLength <= 0 {
		cfg.FingerprintLength = DefaultFingerprintLength
	}
	if cfg.MinExcerptLength <= 0 {
		cfg.MinExcerptLength = DefaultMinExcerptLength
	}
	return &Assembler{config: cfg}
}

// Assemble deduplicates hits by content fingerprint and packs them into a
// bundle no longer than maxContextLength. Input must be rank-sorted; the
// first occurrence of duplicated content is kept, which preserves the
// highest-scored copy.
func (a *Assembler) Assemble(hits []RankedHit, maxContextLength int) ContextBundle {
	bundle := ContextBundle{Excerpts: []Excerpt{}, Sources: []string{}}
	if maxContextLength <= 0 {
		return bundle
	}

	seen := make(map[string]struct{}, len(hits))
	seenSources := make(map[string]struct{})
	var sb strings.Builder

	for _, hit := range hits {
		fp := a.Fingerprint(hit.Content)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}

		label := fmt.Sprintf("[%d]", len(bundle.Excerpts)+1)
		header := excerptHeader(label, hit)
		full := header + hit.Content + "\n\n"

		remaining := maxContextLength - sb.Len()
		content := hit.Content
		truncatedContent := false

		if len(full) > remaining {
			// Try one partial excerpt if a useful amount of budget is left.
			contentBudget := remaining - len(header) - 2
			if contentBudget < a.config.MinExcerptLength {
				bundle.Truncated = true
				break
			}
			// Back the cut off any multi-byte rune it would split.
			for contentBudget > 0 && !utf8.RuneStart(hit.Content[contentBudget]) {
				contentBudget--
			}
			content = hit.Content[:contentBudget]
			full = header + content + "\n\n"
			truncatedContent = true
			bundle.Truncated = true
		}

		sb.WriteString(full)
		bundle.Excerpts = append(bundle.Excerpts, Excerpt{
			Label:      label,
			Collection: hit.Collection,
			URL:        hit.URL,
			Title:      hit.Title,
			Content:    content,
			Truncated:  truncatedContent,
		})

		src := sourceID(hit)
		if _, ok := seenSources[src]; !ok {
			seenSources[src] = struct{}{}
			bundle.Sources = append(bundle.Sources, src)
		}

		if truncatedContent {
			// Budget exhausted after a partial excerpt.
			break
		}
	}

	bundle.Context = sb.String()
	bundle.Length = len(bundle.Context)
	return bundle
}

// Fingerprint derives the duplicate-detection key for content: trim,
// lower-case, collapse whitespace, hash the first FingerprintLength runes.
// Normalizing first keeps near-identical copies (leading whitespace,
// casing) from slipping past deduplication.
func (a *Assembler) Fingerprint(content string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(content), " "))

	runes := []rune(norm)
	if len(runes) > a.config.FingerprintLength {
		runes = runes[:a.config.FingerprintLength]
	}

	sum := sha256.Sum256([]byte(string(runes)))
	return hex.EncodeToString(sum[:])
}

// excerptHeader formats the citation line preceding excerpt content.
func excerptHeader(label string, hit RankedHit) string {
	var sb strings.Builder
	sb.WriteString(label)
	sb.WriteString(" ")
	sb.WriteString(hit.Collection)
	if hit.Title != "" {
		sb.WriteString(" - ")
		sb.WriteString(hit.Title)
	}
	sb.WriteString("\n")
	return sb.String()
}

// sourceID returns the citation identifier for a hit: the URL when known,
// otherwise the collection id.
func sourceID(hit RankedHit) string {
	if hit.URL != "" {
		return hit.URL
	}
	return hit.Collection
}
