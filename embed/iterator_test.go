package embed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
	storagebadger "github.com/poiesic/corpus/storage/badger"
)

func newTestRepo(t *testing.T) storage.DocumentRepository {
	t.Helper()

	repo, backend, err := storagebadger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	return repo
}

// seedDocument writes a file to disk and stores a matching record,
// optionally with a vector already attached.
func seedDocument(t *testing.T, repo storage.DocumentRepository, dir, name, content string, vector []float32) *core.DocumentRecord {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	record := &core.DocumentRecord{
		Path:    path,
		Digest:  fmt.Sprintf("digest-%s", name),
		Size:    int64(len(content)),
		ModTime: time.Now().UTC(),
		Vector:  vector,
	}

	stored, err := repo.UpsertDocuments(context.Background(), record)
	require.NoError(t, err)
	return stored[0]
}

func TestDocumentIterator_PendingFiltersEmbedded(t *testing.T) {
	repo := newTestRepo(t)
	dir := t.TempDir()

	seedDocument(t, repo, dir, "done.txt", "already embedded", []float32{0.1, 0.2})
	seedDocument(t, repo, dir, "todo-a.txt", "needs a vector", nil)
	seedDocument(t, repo, dir, "todo-b.txt", "also needs one", nil)

	pending, err := NewDocumentIterator(repo, 10).Pending(context.Background())
	require.NoError(t, err)

	require.Len(t, pending, 2)
	for _, record := range pending {
		assert.False(t, record.Embedded())
	}
}

func TestDocumentIterator_ForEachBatches(t *testing.T) {
	repo := newTestRepo(t)
	dir := t.TempDir()

	for i := 0; i < 5; i++ {
		seedDocument(t, repo, dir, fmt.Sprintf("doc-%d.txt", i), "text", nil)
	}

	var batchSizes []int
	err := NewDocumentIterator(repo, 2).ForEach(context.Background(), func(batch []*core.DocumentRecord) error {
		batchSizes = append(batchSizes, len(batch))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, batchSizes)
}

func TestDocumentIterator_ForEachEmpty(t *testing.T) {
	repo := newTestRepo(t)

	called := false
	err := NewDocumentIterator(repo, 10).ForEach(context.Background(), func([]*core.DocumentRecord) error {
		called = true
		return nil
	})
	require.NoError(t, err)

	assert.False(t, called)
}

func TestDocumentIterator_ForEachStopsOnError(t *testing.T) {
	repo := newTestRepo(t)
	dir := t.TempDir()

	for i := 0; i < 4; i++ {
		seedDocument(t, repo, dir, fmt.Sprintf("doc-%d.txt", i), "text", nil)
	}

	wantErr := fmt.Errorf("stop here")
	batches := 0
	err := NewDocumentIterator(repo, 2).ForEach(context.Background(), func([]*core.DocumentRecord) error {
		batches++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, batches)
}
