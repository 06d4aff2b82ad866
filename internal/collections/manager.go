package collections

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/coursemind/coursemind/internal/errors"
	"github.com/coursemind/coursemind/internal/retrieval"
)

// reloadDebounce coalesces bursts of filesystem events into one reload.
const reloadDebounce = 500 * time.Millisecond

// ManagerConfig configures the collection manager.
type ManagerConfig struct {
	// DataDir holds the document store and per-collection indexes.
	DataDir string

	// TypoTolerance enables fuzzy keyword matching.
	TypoTolerance bool

	// VectorDimensions is the embedding width for new vector indexes.
	VectorDimensions int

	// WatchForUpdates reloads collections when an indexer process
	// rewrites the data directory.
	WatchForUpdates bool
}

// Manager opens every collection under the data directory and serves
// searches against them. It implements retrieval.CollectionSearcher.
//
// A reindex performed by another process is picked up via fsnotify; a file
// lock keeps reload and reindex from interleaving.
type Manager struct {
	mu          sync.RWMutex
	config      ManagerConfig
	docs        *DocumentStore
	collections map[string]*Collection
	lock        *flock.Flock
	logger      *slog.Logger

	watcher   *fsnotify.Watcher
	stopWatch context.CancelFunc
}

var _ retrieval.CollectionSearcher = (*Manager)(nil)

// DocumentStorePath returns the store location under dataDir.
func DocumentStorePath(dataDir string) string {
	return filepath.Join(dataDir, "documents.db")
}

// LockPath returns the cross-process lock file under dataDir.
func LockPath(dataDir string) string {
	return filepath.Join(dataDir, ".coursemind.lock")
}

func keywordIndexPath(dataDir, collection string) string {
	return filepath.Join(dataDir, collection, "keyword.bleve")
}

func vectorIndexPath(dataDir, collection string) string {
	return filepath.Join(dataDir, collection, "vectors.hnsw")
}

// NewManager opens the document store and every collection it records.
func NewManager(cfg ManagerConfig, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen, "cannot create data directory", err)
	}

	docs, err := OpenDocumentStore(DocumentStorePath(cfg.DataDir))
	if err != nil {
		return nil, errors.New(errors.ErrCodeStoreOpen, "cannot open document store", err)
	}

	m := &Manager{
		config:      cfg,
		docs:        docs,
		collections: make(map[string]*Collection),
		lock:        flock.New(LockPath(cfg.DataDir)),
		logger:      logger,
	}

	if err := m.loadCollections(context.Background()); err != nil {
		docs.Close()
		return nil, err
	}
	return m, nil
}

// loadCollections discovers collections from the document store and opens
// their indexes. Caller must not hold m.mu.
func (m *Manager) loadCollections(ctx context.Context) error {
	infos, err := m.docs.Collections(ctx)
	if err != nil {
		return errors.New(errors.ErrCodeStoreOpen, "cannot list collections", err)
	}

	opened := make(map[string]*Collection, len(infos))
	for _, info := range infos {
		c, err := m.openCollection(info.Name)
		if err != nil {
			// One broken collection should not take the service down.
			m.logger.Warn("collection unavailable",
				slog.String("collection", info.Name),
				slog.String("error", err.Error()))
			continue
		}
		opened[info.Name] = c
	}

	m.mu.Lock()
	old := m.collections
	m.collections = opened
	m.mu.Unlock()

	for _, c := range old {
		_ = c.Close()
	}

	m.logger.Info("collections loaded", slog.Int("count", len(opened)))
	return nil
}

func (m *Manager) openCollection(name string) (*Collection, error) {
	keyword, err := NewKeywordIndex(keywordIndexPath(m.config.DataDir, name))
	if err != nil {
		return nil, err
	}

	// The vector index is optional: keyword-only collections work fine.
	var vector *VectorIndex
	vectorPath := vectorIndexPath(m.config.DataDir, name)
	if _, statErr := os.Stat(vectorPath); statErr == nil && m.config.VectorDimensions > 0 {
		vector, err = NewVectorIndex(VectorConfig{Dimensions: m.config.VectorDimensions})
		if err == nil {
			err = vector.Load(vectorPath)
		}
		if err != nil {
			m.logger.Warn("vector index unavailable, keyword-only",
				slog.String("collection", name),
				slog.String("error", err.Error()))
			vector = nil
		}
	}

	return &Collection{
		name:          name,
		keyword:       keyword,
		vector:        vector,
		docs:          m.docs,
		typoTolerance: m.config.TypoTolerance,
	}, nil
}

// Search implements retrieval.CollectionSearcher.
func (m *Manager) Search(ctx context.Context, collection, query string, vector []float32, topK int) ([]retrieval.RawHit, error) {
	m.mu.RLock()
	c, ok := m.collections[collection]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.ErrCodeCollectionNotFound,
			"collection not found", nil).WithDetail("collection", collection)
	}
	return c.Search(ctx, query, vector, topK)
}

// Collections returns the open collections with their document counts.
func (m *Manager) Collections(ctx context.Context) ([]Info, error) {
	return m.docs.Collections(ctx)
}

// Has reports whether a collection is open.
func (m *Manager) Has(collection string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[collection]
	return ok
}

// Reload reopens every collection, picking up a completed reindex. The
// cross-process lock keeps it from racing an in-flight index write.
func (m *Manager) Reload(ctx context.Context) error {
	if err := m.lock.Lock(); err != nil {
		return errors.New(errors.ErrCodeStoreLocked, "cannot acquire data lock", err)
	}
	defer m.lock.Unlock()

	return m.loadCollections(ctx)
}

// Watch starts reloading collections when the data directory changes.
// Events are debounced so one reindex triggers one reload.
func (m *Manager) Watch(ctx context.Context) error {
	if !m.config.WatchForUpdates {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New(errors.ErrCodeStoreOpen, "cannot create watcher", err)
	}
	if err := watcher.Add(m.config.DataDir); err != nil {
		watcher.Close()
		return errors.New(errors.ErrCodeStoreOpen, "cannot watch data directory", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	m.watcher = watcher
	m.stopWatch = cancel

	go m.watchLoop(watchCtx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := m.Reload(ctx); err != nil {
				m.logger.Warn("collection reload failed", slog.String("error", err.Error()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("data directory watch error", slog.String("error", err.Error()))
		}
	}
}

// relevantEvent filters events down to index content changes, ignoring the
// lock file and temp files.
func relevantEvent(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// Close stops watching and releases every collection and the store.
func (m *Manager) Close() error {
	if m.stopWatch != nil {
		m.stopWatch()
	}
	if m.watcher != nil {
		_ = m.watcher.Close()
	}

	m.mu.Lock()
	collections := m.collections
	m.collections = make(map[string]*Collection)
	m.mu.Unlock()

	var firstErr error
	for _, c := range collections {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.docs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
