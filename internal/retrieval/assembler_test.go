package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedHit(collection, url, title, content string) RankedHit {
	return RankedHit{
		RawHit: RawHit{
			Collection: collection,
			URL:        url,
			Title:      title,
			Content:    content,
		},
	}
}

func TestAssemble_BasicBundle(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})

	hits := []RankedHit{
		rankedHit("discussions", "https://forum/q/1", "Docker fails", "Try rebuilding the image."),
		rankedHit("overview", "", "Week 1", "Course introduction and setup."),
	}

	bundle := a.Assemble(hits, 8000)
	require.Len(t, bundle.Excerpts, 2)

	assert.Equal(t, "[1]", bundle.Excerpts[0].Label)
	assert.Equal(t, "[2]", bundle.Excerpts[1].Label)
	assert.Contains(t, bundle.Context, "[1] discussions - Docker fails\n")
	assert.Contains(t, bundle.Context, "Try rebuilding the image.")
	assert.Equal(t, len(bundle.Context), bundle.Length)
	assert.False(t, bundle.Truncated)

	// URL cited when present, collection id otherwise.
	assert.Equal(t, []string{"https://forum/q/1", "overview"}, bundle.Sources)
}

func TestAssemble_DeduplicatesByFingerprint(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})

	// Same answer indexed in two collections; the higher-ranked copy wins.
	hits := []RankedHit{
		rankedHit("discussions", "u1", "t1", "Use docker compose up to start the stack."),
		rankedHit("all-content", "u2", "t2", "Use docker compose up to start the stack."),
		rankedHit("reference", "u3", "t3", "Something else entirely."),
	}

	bundle := a.Assemble(hits, 8000)
	require.Len(t, bundle.Excerpts, 2)
	assert.Equal(t, "discussions", bundle.Excerpts[0].Collection)
	assert.Equal(t, "reference", bundle.Excerpts[1].Collection)
	assert.NotContains(t, bundle.Sources, "u2")
}

func TestAssemble_FingerprintNormalization(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})

	// Case and whitespace differences still collide.
	hits := []RankedHit{
		rankedHit("a", "", "", "  Use   Docker Compose\nup  "),
		rankedHit("b", "", "", "use docker compose up"),
	}

	bundle := a.Assemble(hits, 8000)
	require.Len(t, bundle.Excerpts, 1)
	assert.Equal(t, "a", bundle.Excerpts[0].Collection)
}

func TestAssemble_FingerprintOnlyHashesPrefix(t *testing.T) {
	a := NewAssembler(AssemblerConfig{FingerprintLength: 10})

	// Identical first 10 characters, different tails: treated as duplicates.
	hits := []RankedHit{
		rankedHit("a", "", "", "same start one tail"),
		rankedHit("b", "", "", "same start another tail"),
	}

	bundle := a.Assemble(hits, 8000)
	assert.Len(t, bundle.Excerpts, 1)
}

func TestAssemble_BudgetTruncatesWithPartialExcerpt(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})

	long := strings.Repeat("x", 500)
	hits := []RankedHit{
		rankedHit("a", "", "", long),
		rankedHit("b", "", "", strings.Repeat("y", 500)),
	}

	bundle := a.Assemble(hits, 700)
	require.Len(t, bundle.Excerpts, 2)

	assert.True(t, bundle.Truncated)
	assert.True(t, bundle.Excerpts[1].Truncated)
	assert.False(t, bundle.Excerpts[0].Truncated)
	assert.GreaterOrEqual(t, len(bundle.Excerpts[1].Content), DefaultMinExcerptLength)
	assert.LessOrEqual(t, bundle.Length, 700)
}

func TestAssemble_PartialExcerptKeepsRuneBoundary(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})

	// Two-byte runes with a budget whose content cut lands mid-rune.
	hits := []RankedHit{
		rankedHit("a", "", "", strings.Repeat("é", 300)),
	}

	bundle := a.Assemble(hits, 401)
	require.Len(t, bundle.Excerpts, 1)

	assert.True(t, bundle.Excerpts[0].Truncated)
	assert.True(t, utf8.ValidString(bundle.Excerpts[0].Content))
	assert.True(t, utf8.ValidString(bundle.Context))
	assert.LessOrEqual(t, bundle.Length, 401)
}

func TestAssemble_SkipsPartialBelowMinimum(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})

	hits := []RankedHit{
		rankedHit("a", "", "", strings.Repeat("x", 500)),
		rankedHit("b", "", "", strings.Repeat("y", 500)),
	}

	// After the first excerpt fewer than 100 content characters remain.
	bundle := a.Assemble(hits, 560)
	require.Len(t, bundle.Excerpts, 1)
	assert.True(t, bundle.Truncated)
	assert.NotContains(t, bundle.Context, "y")
}

func TestAssemble_ZeroBudget(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})
	bundle := a.Assemble([]RankedHit{rankedHit("a", "", "", "content")}, 0)
	assert.Empty(t, bundle.Excerpts)
	assert.Empty(t, bundle.Context)
}

func TestAssemble_EmptyHits(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})
	bundle := a.Assemble(nil, 8000)
	assert.Empty(t, bundle.Excerpts)
	assert.Empty(t, bundle.Sources)
	assert.False(t, bundle.Truncated)
}

func TestAssemble_SourcesDeduplicated(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})

	hits := []RankedHit{
		rankedHit("discussions", "https://forum/q/1", "part 1", "First chunk of the thread."),
		rankedHit("discussions", "https://forum/q/1", "part 2", "Second chunk of the thread."),
	}

	bundle := a.Assemble(hits, 8000)
	require.Len(t, bundle.Excerpts, 2)
	assert.Equal(t, []string{"https://forum/q/1"}, bundle.Sources)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})
	assert.Equal(t, a.Fingerprint("hello world"), a.Fingerprint("hello world"))
	assert.NotEqual(t, a.Fingerprint("hello world"), a.Fingerprint("goodbye world"))
}
