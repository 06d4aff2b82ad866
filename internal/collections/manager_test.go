package collections

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmerrors "github.com/coursemind/coursemind/internal/errors"
)

const unifiedName = "all-content"

// staticTestEmbedder maps a few known words onto fixed unit vectors so
// vector search outcomes are predictable.
type staticTestEmbedder struct{}

func (staticTestEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	switch {
	case strings.Contains(text, "docker"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "sql"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func seedData(t *testing.T, dataDir string) {
	t.Helper()
	indexer := NewIndexer(IndexerConfig{DataDir: dataDir, Unified: unifiedName}, nil, nil)
	_, err := indexer.Index(context.Background(), []Document{
		{ID: "q1", Collection: "discussions", Content: "docker compose fails with exit code 1", URL: "https://forum/q1", Title: "Docker error", ContentType: "discussion"},
		{ID: "q2", Collection: "discussions", Content: "how to join tables in sql", ContentType: "discussion"},
		{ID: "m1", Collection: "misc", Content: "course overview for week one", ContentType: "overview"},
	})
	require.NoError(t, err)
}

func newTestManager(t *testing.T, dataDir string) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{DataDir: dataDir, TypoTolerance: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_SearchCollection(t *testing.T) {
	dataDir := t.TempDir()
	seedData(t, dataDir)
	m := newTestManager(t, dataDir)

	hits, err := m.Search(context.Background(), "discussions", "docker", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hit := hits[0]
	assert.Equal(t, "discussions", hit.Collection)
	assert.Equal(t, "docker compose fails with exit code 1", hit.Content)
	assert.Equal(t, "https://forum/q1", hit.URL)
	assert.Equal(t, "Docker error", hit.Title)
	assert.Greater(t, hit.TextMatchScore, int64(0))
	assert.Nil(t, hit.VectorDistance)
}

func TestManager_UnifiedCollectionMirrorsEverything(t *testing.T) {
	dataDir := t.TempDir()
	seedData(t, dataDir)
	m := newTestManager(t, dataDir)

	hits, err := m.Search(context.Background(), unifiedName, "overview", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, unifiedName, hits[0].Collection)
	assert.Equal(t, "course overview for week one", hits[0].Content)
}

func TestManager_UnknownCollection(t *testing.T) {
	dataDir := t.TempDir()
	seedData(t, dataDir)
	m := newTestManager(t, dataDir)

	_, err := m.Search(context.Background(), "nonexistent", "q", nil, 10)
	require.Error(t, err)
	assert.Equal(t, cmerrors.ErrCodeCollectionNotFound, cmerrors.GetCode(err))
}

func TestManager_TypoToleranceFindsMisspellings(t *testing.T) {
	dataDir := t.TempDir()
	seedData(t, dataDir)
	m := newTestManager(t, dataDir)

	hits, err := m.Search(context.Background(), "discussions", "dockr", nil, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestManager_ReloadPicksUpNewCollections(t *testing.T) {
	dataDir := t.TempDir()
	seedData(t, dataDir)
	m := newTestManager(t, dataDir)

	assert.False(t, m.Has("assignments"))

	indexer := NewIndexer(IndexerConfig{DataDir: dataDir, Unified: unifiedName}, nil, nil)
	_, err := indexer.Index(context.Background(), []Document{
		{ID: "a1", Collection: "assignments", Content: "homework three instructions"},
	})
	require.NoError(t, err)

	require.NoError(t, m.Reload(context.Background()))
	assert.True(t, m.Has("assignments"))

	hits, err := m.Search(context.Background(), "assignments", "homework", nil, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestManager_HybridSearchCarriesDistances(t *testing.T) {
	dataDir := t.TempDir()

	indexer := NewIndexer(IndexerConfig{DataDir: dataDir, Unified: unifiedName, VectorDimensions: 3}, staticTestEmbedder{}, nil)
	_, err := indexer.Index(context.Background(), []Document{
		{ID: "q1", Collection: "discussions", Content: "docker compose fails"},
		{ID: "q2", Collection: "discussions", Content: "sql joins explained"},
	})
	require.NoError(t, err)

	m, err := NewManager(ManagerConfig{DataDir: dataDir, VectorDimensions: 3}, nil)
	require.NoError(t, err)
	defer m.Close()

	hits, err := m.Search(context.Background(), "discussions", "docker", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	var found bool
	for _, hit := range hits {
		if hit.Content == "docker compose fails" {
			found = true
			require.NotNil(t, hit.VectorDistance)
			assert.InDelta(t, 0.0, *hit.VectorDistance, 1e-6)
		}
	}
	assert.True(t, found)
}

func TestIndexer_ValidatesDocuments(t *testing.T) {
	indexer := NewIndexer(IndexerConfig{DataDir: t.TempDir()}, nil, nil)

	tests := []struct {
		name string
		docs []Document
	}{
		{"empty batch", nil},
		{"missing id", []Document{{Collection: "c", Content: "x"}}},
		{"missing collection", []Document{{ID: "1", Content: "x"}}},
		{"blank content", []Document{{ID: "1", Collection: "c", Content: "  "}}},
		{"path separator in collection", []Document{{ID: "1", Collection: "a/b", Content: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := indexer.Index(context.Background(), tt.docs)
			require.Error(t, err)
			assert.Equal(t, cmerrors.ErrCodeInvalidInput, cmerrors.GetCode(err))
		})
	}
}

func TestIndexer_PruneRemovesStaleDocuments(t *testing.T) {
	dataDir := t.TempDir()
	seedData(t, dataDir)

	// Reindex discussions without q2; misc is not part of the run.
	indexer := NewIndexer(IndexerConfig{DataDir: dataDir, Unified: unifiedName, Prune: true}, nil, nil)
	report, err := indexer.Index(context.Background(), []Document{
		{ID: "q1", Collection: "discussions", Content: "docker compose fails with exit code 1", ContentType: "discussion"},
	})
	require.NoError(t, err)

	// q2 and its unified mirror are gone.
	assert.Equal(t, 2, report.Pruned)

	m := newTestManager(t, dataDir)
	hits, err := m.Search(context.Background(), "discussions", "sql", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = m.Search(context.Background(), unifiedName, "sql", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// An untouched collection keeps its documents and mirrors.
	hits, err = m.Search(context.Background(), unifiedName, "course overview", nil, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestIndexer_PruneOffKeepsEverything(t *testing.T) {
	dataDir := t.TempDir()
	seedData(t, dataDir)

	indexer := NewIndexer(IndexerConfig{DataDir: dataDir, Unified: unifiedName}, nil, nil)
	report, err := indexer.Index(context.Background(), []Document{
		{ID: "q1", Collection: "discussions", Content: "docker compose fails with exit code 1", ContentType: "discussion"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Pruned)

	m := newTestManager(t, dataDir)
	hits, err := m.Search(context.Background(), "discussions", "sql", nil, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestIndexer_ReportCountsMirrors(t *testing.T) {
	indexer := NewIndexer(IndexerConfig{DataDir: t.TempDir(), Unified: unifiedName}, nil, nil)

	report, err := indexer.Index(context.Background(), []Document{
		{ID: "1", Collection: "a", Content: "x"},
		{ID: "2", Collection: "b", Content: "y"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Collections["a"])
	assert.Equal(t, 1, report.Collections["b"])
	assert.Equal(t, 2, report.Collections[unifiedName])
}

func TestLoadDocuments_JSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"1","collection":"c","content":"first"},
		{"id":"2","collection":"c","content":"second"}
	]`), 0644))

	docs, err := LoadDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0].Content)
}

func TestLoadDocuments_JSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"id":"1","collection":"c","content":"first"}
{"id":"2","collection":"c","content":"second"}
`), 0644))

	docs, err := LoadDocuments(path)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestLoadDocuments_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"a list"`), 0644))

	_, err := LoadDocuments(path)
	require.Error(t, err)
	assert.Equal(t, cmerrors.ErrCodeInvalidInput, cmerrors.GetCode(err))
}
