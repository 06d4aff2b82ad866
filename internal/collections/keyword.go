package collections

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// scoreScale maps raw keyword scores onto the 0..1,000,000 integer range
// the ranker normalizes against. The saturating transform s/(s+1) keeps
// ordering and puts strong matches (raw score ~9+) near 900,000.
const scoreScale = 1_000_000

// KeywordIndex wraps a bleve index for BM25-style keyword search over one
// collection.
type KeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

type keywordDocument struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

// validateIndexIntegrity checks a bleve index directory before opening.
// A missing or unparseable index_meta.json means the index is corrupt.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewKeywordIndex opens or creates a keyword index at path. An empty path
// creates an in-memory index for testing. A corrupted on-disk index is
// cleared and recreated; reindexing restores it.
func NewKeywordIndex(path string) (*KeywordIndex, error) {
	indexMapping := bleve.NewIndexMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory: %w", mkErr)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted at %s and cannot remove: %w", path, removeErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("keyword_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted, cannot clear: %w", removeErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open keyword index: %w", err)
	}

	return &KeywordIndex{index: idx, path: path}, nil
}

// Index adds documents to the index in one batch.
func (k *KeywordIndex) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return fmt.Errorf("keyword index is closed")
	}

	batch := k.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, keywordDocument{Content: doc.Content, Title: doc.Title}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search returns up to limit keyword matches. With fuzzy enabled, terms
// also match within edit distance 1, which absorbs common typos.
func (k *KeywordIndex) Search(ctx context.Context, queryStr string, limit int, fuzzy bool) ([]KeywordHit, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []KeywordHit{}, nil
	}

	searchRequest := bleve.NewSearchRequest(buildQuery(queryStr, fuzzy))
	searchRequest.Size = limit

	result, err := k.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	hits := make([]KeywordHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, KeywordHit{ID: hit.ID, Score: scaleScore(hit.Score)})
	}
	return hits, nil
}

// buildQuery matches content and title, optionally widened with a
// lower-weighted fuzzy variant.
func buildQuery(queryStr string, fuzzy bool) query.Query {
	content := bleve.NewMatchQuery(queryStr)
	content.SetField("content")

	title := bleve.NewMatchQuery(queryStr)
	title.SetField("title")

	queries := []query.Query{content, title}
	if fuzzy {
		fc := bleve.NewMatchQuery(queryStr)
		fc.SetField("content")
		fc.SetFuzziness(1)
		fc.SetBoost(0.5)
		queries = append(queries, fc)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// scaleScore saturates a raw score onto the integer scale.
func scaleScore(score float64) int64 {
	if score <= 0 {
		return 0
	}
	return int64(score / (score + 1) * scoreScale)
}

// Count returns the number of indexed documents.
func (k *KeywordIndex) Count() (uint64, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return 0, fmt.Errorf("keyword index is closed")
	}
	return k.index.DocCount()
}

// Delete removes documents by ID.
func (k *KeywordIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return fmt.Errorf("keyword index is closed")
	}

	batch := k.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Close releases the underlying index.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	return k.index.Close()
}
