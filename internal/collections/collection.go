package collections

import (
	"context"
	"fmt"

	"github.com/coursemind/coursemind/internal/retrieval"
)

// Collection binds one collection's keyword index, vector index, and
// document store into a single hybrid search surface.
type Collection struct {
	name          string
	keyword       *KeywordIndex
	vector        *VectorIndex
	docs          *DocumentStore
	typoTolerance bool
}

// Name returns the collection identifier.
func (c *Collection) Name() string {
	return c.name
}

// Search runs keyword search, and vector search when a query embedding is
// provided, then joins both result sets with document metadata. Hits found
// only by the vector index carry a zero text score; hits found only by
// keyword search carry no vector distance.
func (c *Collection) Search(ctx context.Context, query string, vector []float32, topK int) ([]retrieval.RawHit, error) {
	keywordHits, err := c.keyword.Search(ctx, query, topK, c.typoTolerance)
	if err != nil {
		return nil, fmt.Errorf("keyword search in %s: %w", c.name, err)
	}

	var vectorHits []VectorHit
	if vector != nil && c.vector != nil {
		vectorHits, err = c.vector.Search(ctx, vector, topK)
		if err != nil {
			return nil, fmt.Errorf("vector search in %s: %w", c.name, err)
		}
	}

	return c.join(ctx, keywordHits, vectorHits, topK)
}

// join merges keyword and vector results by document ID, keyword order
// first, and hydrates them from the document store.
func (c *Collection) join(ctx context.Context, keywordHits []KeywordHit, vectorHits []VectorHit, topK int) ([]retrieval.RawHit, error) {
	distances := make(map[string]float64, len(vectorHits))
	for _, vh := range vectorHits {
		distances[vh.ID] = vh.Distance
	}

	ids := make([]string, 0, len(keywordHits)+len(vectorHits))
	seen := make(map[string]struct{}, len(keywordHits))
	scores := make(map[string]int64, len(keywordHits))
	for _, kh := range keywordHits {
		ids = append(ids, kh.ID)
		seen[kh.ID] = struct{}{}
		scores[kh.ID] = kh.Score
	}
	for _, vh := range vectorHits {
		if _, ok := seen[vh.ID]; ok {
			continue
		}
		ids = append(ids, vh.ID)
	}
	if len(ids) > topK {
		ids = ids[:topK]
	}

	docs, err := c.docs.Get(ctx, c.name, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate documents in %s: %w", c.name, err)
	}

	hits := make([]retrieval.RawHit, 0, len(ids))
	for _, id := range ids {
		doc, ok := docs[id]
		if !ok {
			// Index and store drifted; skip until the next reindex.
			continue
		}

		hit := retrieval.RawHit{
			Collection:     c.name,
			Content:        doc.Content,
			URL:            doc.URL,
			Title:          doc.Title,
			ContentType:    retrieval.ContentType(doc.ContentType),
			TextMatchScore: scores[id],
		}
		if dist, ok := distances[id]; ok {
			d := dist
			hit.VectorDistance = &d
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of documents in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.docs.Count(ctx, c.name)
}

// Close releases the collection's indexes. The shared document store is
// closed by the manager, not here.
func (c *Collection) Close() error {
	var firstErr error
	if c.keyword != nil {
		if err := c.keyword.Close(); err != nil {
			firstErr = err
		}
	}
	if c.vector != nil {
		if err := c.vector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
