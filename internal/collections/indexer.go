package collections

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/coursemind/coursemind/internal/errors"
	"github.com/coursemind/coursemind/internal/retrieval"
)

// IndexerConfig configures a document ingest run.
type IndexerConfig struct {
	// DataDir is the same directory the manager serves from.
	DataDir string

	// Unified is the comprehensive collection every document is mirrored
	// into, in addition to its own collection.
	Unified string

	// VectorDimensions is the embedding width. Zero disables vector
	// indexing even when an embedder is present.
	VectorDimensions int

	// Prune removes previously indexed documents that are absent from the
	// current run, per collection touched by the run.
	Prune bool
}

// IndexReport summarizes one ingest run.
type IndexReport struct {
	Total       int            `json:"total"`
	Embedded    int            `json:"embedded"`
	EmbedFailed int            `json:"embed_failed"`
	Pruned      int            `json:"pruned"`
	Collections map[string]int `json:"collections"`
	Elapsed     time.Duration  `json:"elapsed"`
}

// Indexer writes documents into the document store and derived indexes.
// It takes the cross-process lock for the duration of a run, so a serving
// manager never reloads a half-written index.
type Indexer struct {
	config   IndexerConfig
	embedder retrieval.Embedder
	logger   *slog.Logger
}

// NewIndexer creates an indexer. embedder may be nil for keyword-only
// ingestion.
func NewIndexer(cfg IndexerConfig, embedder retrieval.Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{config: cfg, embedder: embedder, logger: logger}
}

// LoadDocuments reads documents from a JSON file: either a top-level array
// or one JSON object per line.
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot read documents file", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var docs []Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "cannot parse documents file", err)
		}
		return docs, nil
	}

	var docs []Document
	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("cannot parse document on line %d", line), err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot scan documents file", err)
	}
	return docs, nil
}

// Index validates and writes docs, mirroring each into the unified
// collection. Embedding failures degrade the affected documents to
// keyword-only rather than failing the run.
func (ix *Indexer) Index(ctx context.Context, docs []Document) (*IndexReport, error) {
	start := time.Now()

	if err := validateDocuments(docs); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(ix.config.DataDir, 0755); err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen, "cannot create data directory", err)
	}

	lock := flock.New(LockPath(ix.config.DataDir))
	if err := lock.Lock(); err != nil {
		return nil, errors.New(errors.ErrCodeStoreLocked, "cannot acquire data lock", err)
	}
	defer lock.Unlock()

	store, err := OpenDocumentStore(DocumentStorePath(ix.config.DataDir))
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen, "cannot open document store", err)
	}
	defer store.Close()

	report := &IndexReport{Collections: make(map[string]int)}

	grouped := ix.groupWithUnified(docs)
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		sources[doc.Collection] = struct{}{}
	}

	for _, name := range names {
		batch := grouped[name]
		if err := ix.indexCollection(ctx, store, name, batch, sources, report); err != nil {
			return nil, err
		}
		report.Collections[name] = len(batch)
	}

	report.Total = len(docs)
	report.Elapsed = time.Since(start)

	ix.logger.Info("index run complete",
		slog.Int("documents", report.Total),
		slog.Int("collections", len(report.Collections)),
		slog.Int("embedded", report.Embedded),
		slog.Int("pruned", report.Pruned),
		slog.Duration("elapsed", report.Elapsed))
	return report, nil
}

// groupWithUnified groups documents by collection and mirrors each into the
// unified collection under a prefixed ID so mirrors never collide.
func (ix *Indexer) groupWithUnified(docs []Document) map[string][]Document {
	grouped := make(map[string][]Document)
	for _, doc := range docs {
		grouped[doc.Collection] = append(grouped[doc.Collection], doc)

		if ix.config.Unified != "" && doc.Collection != ix.config.Unified {
			mirror := doc
			mirror.ID = doc.Collection + "/" + doc.ID
			mirror.Collection = ix.config.Unified
			grouped[ix.config.Unified] = append(grouped[ix.config.Unified], mirror)
		}
	}
	return grouped
}

func (ix *Indexer) indexCollection(ctx context.Context, store *DocumentStore, name string, docs []Document, sources map[string]struct{}, report *IndexReport) error {
	var stale []string
	if ix.config.Prune {
		var err error
		if stale, err = ix.staleIDs(ctx, store, name, docs, sources); err != nil {
			return err
		}
	}

	if err := store.Put(ctx, docs); err != nil {
		return errors.New(errors.ErrCodeStoreOpen,
			fmt.Sprintf("cannot store documents for %s", name), err)
	}
	if len(stale) > 0 {
		if err := store.Delete(ctx, name, stale); err != nil {
			return errors.New(errors.ErrCodeStoreOpen,
				fmt.Sprintf("cannot prune documents for %s", name), err)
		}
		report.Pruned += len(stale)
	}

	keyword, err := NewKeywordIndex(keywordIndexPath(ix.config.DataDir, name))
	if err != nil {
		return errors.New(errors.ErrCodeStoreOpen,
			fmt.Sprintf("cannot open keyword index for %s", name), err)
	}
	defer keyword.Close()

	if err := keyword.Index(ctx, docs); err != nil {
		return errors.New(errors.ErrCodeStoreOpen,
			fmt.Sprintf("cannot index keywords for %s", name), err)
	}
	if len(stale) > 0 {
		if err := keyword.Delete(ctx, stale); err != nil {
			return errors.New(errors.ErrCodeStoreOpen,
				fmt.Sprintf("cannot prune keyword index for %s", name), err)
		}
	}

	if ix.embedder == nil || ix.config.VectorDimensions <= 0 {
		return nil
	}
	return ix.indexVectors(ctx, name, docs, stale, report)
}

// staleIDs lists documents already stored in the collection that the current
// run no longer carries. In the unified collection, only mirrors of
// collections present in the run are candidates, so a partial run never
// prunes another collection's mirrors.
func (ix *Indexer) staleIDs(ctx context.Context, store *DocumentStore, name string, docs []Document, sources map[string]struct{}) ([]string, error) {
	existing, err := store.All(ctx, name)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen,
			fmt.Sprintf("cannot list documents for %s", name), err)
	}

	current := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		current[doc.ID] = struct{}{}
	}

	var stale []string
	for _, doc := range existing {
		if _, ok := current[doc.ID]; ok {
			continue
		}
		if name == ix.config.Unified {
			source := name
			if prefix, _, found := strings.Cut(doc.ID, "/"); found {
				source = prefix
			}
			if _, ok := sources[source]; !ok {
				continue
			}
		}
		stale = append(stale, doc.ID)
	}
	return stale, nil
}

func (ix *Indexer) indexVectors(ctx context.Context, name string, docs []Document, stale []string, report *IndexReport) error {
	vectorPath := vectorIndexPath(ix.config.DataDir, name)

	vector, err := NewVectorIndex(VectorConfig{Dimensions: ix.config.VectorDimensions})
	if err != nil {
		return errors.New(errors.ErrCodeStoreOpen,
			fmt.Sprintf("cannot create vector index for %s", name), err)
	}
	defer vector.Close()

	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if loadErr := vector.Load(vectorPath); loadErr != nil {
			ix.logger.Warn("rebuilding vector index",
				slog.String("collection", name),
				slog.String("error", loadErr.Error()))
		}
	}

	if len(stale) > 0 {
		if err := vector.Delete(ctx, stale); err != nil {
			return errors.New(errors.ErrCodeStoreOpen,
				fmt.Sprintf("cannot prune vectors for %s", name), err)
		}
	}

	var ids []string
	var vectors [][]float32
	for _, doc := range docs {
		embedding, embErr := ix.embedder.Embed(ctx, doc.Content)
		if embErr != nil {
			report.EmbedFailed++
			ix.logger.Warn("embedding failed, keyword-only document",
				slog.String("collection", name),
				slog.String("id", doc.ID),
				slog.String("error", embErr.Error()))
			continue
		}
		ids = append(ids, doc.ID)
		vectors = append(vectors, embedding)
	}

	if len(ids) > 0 {
		if err := vector.Add(ctx, ids, vectors); err != nil {
			return errors.New(errors.ErrCodeStoreOpen,
				fmt.Sprintf("cannot add vectors for %s", name), err)
		}
		report.Embedded += len(ids)
	}

	if err := vector.Save(vectorPath); err != nil {
		return errors.New(errors.ErrCodeStoreOpen,
			fmt.Sprintf("cannot save vector index for %s", name), err)
	}
	return nil
}

func validateDocuments(docs []Document) error {
	if len(docs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no documents to index", nil)
	}
	for i, doc := range docs {
		switch {
		case doc.ID == "":
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("document %d has no id", i), nil)
		case doc.Collection == "":
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("document %q has no collection", doc.ID), nil)
		case strings.TrimSpace(doc.Content) == "":
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("document %q has no content", doc.ID), nil)
		case strings.ContainsAny(doc.Collection, "/\\"):
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("collection %q contains path separators", doc.Collection), nil)
		}
	}
	return nil
}
