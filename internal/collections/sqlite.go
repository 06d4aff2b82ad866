package collections

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// DocumentStore persists document content and metadata in SQLite. It is
// the system of record; the keyword and vector indexes are derived from it
// and can be rebuilt. WAL mode allows concurrent reader processes.
type DocumentStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

const documentSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection   TEXT NOT NULL,
	id           TEXT NOT NULL,
	content      TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	indexed_at   TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// OpenDocumentStore opens or creates the store at path. An empty path opens
// an in-memory database for testing.
func OpenDocumentStore(path string) (*DocumentStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer prevents lock contention with modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params are
	// ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(documentSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DocumentStore{db: db, path: path}, nil
}

// Put upserts documents in one transaction.
func (s *DocumentStore) Put(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("document store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection, id, content, url, title, content_type, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			content = excluded.content,
			url = excluded.url,
			title = excluded.title,
			content_type = excluded.content_type,
			indexed_at = excluded.indexed_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		indexedAt := doc.IndexedAt
		if indexedAt.IsZero() {
			indexedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, doc.Collection, doc.ID, doc.Content,
			doc.URL, doc.Title, doc.ContentType, indexedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("upsert document %s/%s: %w", doc.Collection, doc.ID, err)
		}
	}

	return tx.Commit()
}

// Get fetches documents by ID within a collection. Missing IDs are simply
// absent from the result.
func (s *DocumentStore) Get(ctx context.Context, collection string, ids []string) (map[string]Document, error) {
	if len(ids) == 0 {
		return map[string]Document{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("document store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, content, url, title, content_type, indexed_at
		FROM documents WHERE collection = ? AND id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]Document, len(ids))
	for rows.Next() {
		var doc Document
		var indexedAt string
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.URL, &doc.Title, &doc.ContentType, &indexedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Collection = collection
		doc.IndexedAt, _ = time.Parse(time.RFC3339, indexedAt)
		docs[doc.ID] = doc
	}
	return docs, rows.Err()
}

// All returns every document in a collection, ordered by ID. Used to
// rebuild derived indexes.
func (s *DocumentStore) All(ctx context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("document store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, url, title, content_type, indexed_at
		FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var indexedAt string
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.URL, &doc.Title, &doc.ContentType, &indexedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Collection = collection
		doc.IndexedAt, _ = time.Parse(time.RFC3339, indexedAt)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes documents by ID within a collection.
func (s *DocumentStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("document store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM documents WHERE collection = ? AND id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Collections lists every collection with its document count.
func (s *DocumentStore) Collections(ctx context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("document store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, COUNT(*) FROM documents
		GROUP BY collection ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Name, &info.DocCount); err != nil {
			return nil, fmt.Errorf("scan collection info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Count returns the number of documents in a collection.
func (s *DocumentStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("document store is closed")
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// Close releases the database handle.
func (s *DocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
