package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

func openMemory(t *testing.T) *DocumentStore {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(name string, age time.Duration) *domain.DocumentRecord {
	r := domain.NewDocumentRecord(name, "uploads/"+name, "application/pdf", 1024)
	r.CreatedAt = r.CreatedAt.Add(-age)
	return r
}

func TestDocumentStore_SaveGet(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()
	r := record("policy.pdf", 0)

	require.NoError(t, store.Save(ctx, r))

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Filename, got.Filename)
	assert.Equal(t, r.Path, got.Path)
	assert.Equal(t, int64(1024), got.SizeBytes)
	assert.Equal(t, domain.IndexStatusProcessing, got.Status)
	assert.True(t, r.CreatedAt.Equal(got.CreatedAt))
}

func TestDocumentStore_SaveUpdates(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()
	r := record("policy.pdf", 0)
	require.NoError(t, store.Save(ctx, r))

	r.Fail("extraction failed: not a PDF")
	require.NoError(t, store.Save(ctx, r))

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusFailed, got.Status)
	assert.Equal(t, "extraction failed: not a PDF", got.Error)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDocumentStore_GetMissing(t *testing.T) {
	_, err := openMemory(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListNewestFirst(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()

	oldest := record("a.pdf", 2*time.Hour)
	middle := record("b.pdf", time.Hour)
	newest := record("c.pdf", 0)
	for _, r := range []*domain.DocumentRecord{middle, oldest, newest} {
		require.NoError(t, store.Save(ctx, r))
	}

	all, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	page, err := store.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, middle.ID, page[0].ID)

	empty, err := store.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestDocumentStore_Delete(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()
	r := record("policy.pdf", 0)
	require.NoError(t, store.Save(ctx, r))

	require.NoError(t, store.Delete(ctx, r.ID))
	assert.ErrorIs(t, store.Delete(ctx, r.ID), domain.ErrNotFound)
}

func TestDocumentStore_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "registry.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	r := record("policy.pdf", 0)
	require.NoError(t, store.Save(ctx, r))
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}
