package collections

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemDocumentStore(t *testing.T) *DocumentStore {
	t.Helper()
	store, err := OpenDocumentStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDocumentStore_PutAndGet(t *testing.T) {
	store := newMemDocumentStore(t)

	docs := []Document{
		{ID: "1", Collection: "discussions", Content: "first", URL: "https://a", Title: "t1", ContentType: "discussion"},
		{ID: "2", Collection: "discussions", Content: "second"},
	}
	require.NoError(t, store.Put(context.Background(), docs))

	got, err := store.Get(context.Background(), "discussions", []string{"1", "2", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "first", got["1"].Content)
	assert.Equal(t, "https://a", got["1"].URL)
	assert.Equal(t, "discussion", got["1"].ContentType)
	assert.Equal(t, "discussions", got["1"].Collection)
	assert.False(t, got["1"].IndexedAt.IsZero())
}

func TestDocumentStore_PutUpserts(t *testing.T) {
	store := newMemDocumentStore(t)

	require.NoError(t, store.Put(context.Background(), []Document{
		{ID: "1", Collection: "misc", Content: "old"},
	}))
	require.NoError(t, store.Put(context.Background(), []Document{
		{ID: "1", Collection: "misc", Content: "new", Title: "updated"},
	}))

	got, err := store.Get(context.Background(), "misc", []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, "new", got["1"].Content)
	assert.Equal(t, "updated", got["1"].Title)

	count, err := store.Count(context.Background(), "misc")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDocumentStore_CollectionsAreIsolated(t *testing.T) {
	store := newMemDocumentStore(t)

	require.NoError(t, store.Put(context.Background(), []Document{
		{ID: "1", Collection: "a", Content: "in a"},
		{ID: "1", Collection: "b", Content: "in b"},
	}))

	got, err := store.Get(context.Background(), "a", []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, "in a", got["1"].Content)
}

func TestDocumentStore_Collections(t *testing.T) {
	store := newMemDocumentStore(t)

	require.NoError(t, store.Put(context.Background(), []Document{
		{ID: "1", Collection: "b", Content: "x"},
		{ID: "2", Collection: "b", Content: "y"},
		{ID: "1", Collection: "a", Content: "z"},
	}))

	infos, err := store.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, Info{Name: "a", DocCount: 1}, infos[0])
	assert.Equal(t, Info{Name: "b", DocCount: 2}, infos[1])
}

func TestDocumentStore_All(t *testing.T) {
	store := newMemDocumentStore(t)

	require.NoError(t, store.Put(context.Background(), []Document{
		{ID: "b", Collection: "c", Content: "x"},
		{ID: "a", Collection: "c", Content: "y"},
	}))

	docs, err := store.All(context.Background(), "c")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
}

func TestDocumentStore_Delete(t *testing.T) {
	store := newMemDocumentStore(t)

	require.NoError(t, store.Put(context.Background(), []Document{
		{ID: "1", Collection: "c", Content: "x"},
		{ID: "2", Collection: "c", Content: "y"},
	}))
	require.NoError(t, store.Delete(context.Background(), "c", []string{"1"}))

	count, err := store.Count(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDocumentStore_PersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")

	store, err := OpenDocumentStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), []Document{
		{ID: "1", Collection: "c", Content: "persisted"},
	}))
	require.NoError(t, store.Close())

	reopened, err := OpenDocumentStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "c", []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, "persisted", got["1"].Content)
}

func TestDocumentStore_ClosedRejectsOperations(t *testing.T) {
	store, err := OpenDocumentStore("")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Error(t, store.Put(context.Background(), []Document{{ID: "1", Collection: "c", Content: "x"}}))
	_, err = store.Get(context.Background(), "c", []string{"1"})
	assert.Error(t, err)
}
