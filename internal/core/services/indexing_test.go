package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askmydocs/internal/chunker"
	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven/mocks"
)

const testIndexPath = "data/vector_store"

type indexingFixture struct {
	*fixture
	orchestrator *IndexingOrchestrator
	factory      *mocks.MockVectorIndexFactory
	lock         *mocks.MockDistributedLock
	files        *mocks.MockFileStore
	documents    *mocks.MockDocumentStore
	extractor    *mocks.MockExtractor
}

func newIndexingFixture(t *testing.T) *indexingFixture {
	t.Helper()
	f := newFixture()

	c, err := chunker.New(domain.ChunkStrategySectionAware, domain.DefaultChunkOptions())
	require.NoError(t, err)

	fx := &indexingFixture{
		fixture:   f,
		factory:   mocks.NewMockVectorIndexFactory(),
		lock:      mocks.NewMockDistributedLock(),
		files:     mocks.NewMockFileStore(),
		documents: mocks.NewMockDocumentStore(),
		extractor: mocks.NewMockExtractor(),
	}
	fx.orchestrator = NewIndexingOrchestrator(IndexingConfig{
		Chunker:     c,
		Extractors:  mocks.NewMockExtractorRegistry(fx.extractor),
		Factory:     fx.factory,
		Services:    f.services,
		Lock:        fx.lock,
		Files:       fx.files,
		Documents:   fx.documents,
		IndexPath:   testIndexPath,
		LockWait:    20 * time.Millisecond,
		KeepUploads: true,
	})
	return fx
}

// upload stores a file and its registry record the way ingestion does.
func (fx *indexingFixture) upload(t *testing.T, filename, text string) *domain.DocumentRecord {
	t.Helper()
	path, size, err := fx.files.Save(context.Background(), filename, strings.NewReader(text), 0)
	require.NoError(t, err)
	record := domain.NewDocumentRecord(filename, path, "", size)
	require.NoError(t, fx.documents.Save(context.Background(), record))
	fx.extractor.SetDocument(path, &domain.ExtractedDocument{Text: text, Title: "Policy", Author: "Acme"})
	return record
}

const policyText = "Acme travel cover.\nCOVERAGE:\nTrip cancellation is included.\nEXCLUSIONS:\nPre-existing conditions."

func TestIndexText_BuildsPersistsAndSwaps(t *testing.T) {
	fx := newIndexingFixture(t)

	result, err := fx.orchestrator.IndexText(context.Background(), "doc-1", policyText,
		map[string]string{domain.MetaSource: "policy.pdf"})
	require.NoError(t, err)

	assert.Equal(t, domain.IndexStatusIndexed, result.Status)
	assert.Equal(t, 3, result.ChunkCount)
	assert.Equal(t, 1, fx.factory.Disk.Persists())
	assert.Equal(t, 1, fx.embedding.EmbedCalls(), "passages are embedded in one batch")

	live := fx.services.Index()
	require.NotNil(t, live)
	assert.True(t, fx.services.Config().IndexReady())
	for _, p := range live.Passages() {
		assert.Equal(t, "doc-1", p.DocumentID())
		assert.Equal(t, "policy.pdf", p.Source())
	}

	bundle, ok := fx.factory.Disk.Bundle(testIndexPath)
	require.True(t, ok)
	assert.Len(t, bundle, 3)
	assert.Equal(t, []string{"index:" + testIndexPath}, fx.lock.Acquired())
	assert.False(t, fx.lock.IsHeld("index:"+testIndexPath), "lock must be released")
}

func TestIndexText_AccumulatesAndReplaces(t *testing.T) {
	fx := newIndexingFixture(t)
	ctx := context.Background()

	_, err := fx.orchestrator.IndexText(ctx, "doc-1", policyText, nil)
	require.NoError(t, err)
	_, err = fx.orchestrator.IndexText(ctx, "doc-2", "Second document body.", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, fx.services.Index().Len())

	// Re-indexing a document replaces its passages
	_, err = fx.orchestrator.IndexText(ctx, "doc-1", "Rewritten policy.", nil)
	require.NoError(t, err)

	live := fx.services.Index().Passages()
	require.Len(t, live, 2)
	assert.Equal(t, "Second document body.", live[0].Text)
	assert.Equal(t, "Rewritten policy.", live[1].Text)
}

func TestIndexText_EmptyTextSkipsPersist(t *testing.T) {
	fx := newIndexingFixture(t)

	result, err := fx.orchestrator.IndexText(context.Background(), "doc-1", "  \n  ", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.IndexStatusEmpty, result.Status)
	assert.Equal(t, 0, result.ChunkCount)
	assert.Equal(t, 0, fx.factory.Disk.Persists())
	assert.Nil(t, fx.services.Index())
	assert.Empty(t, fx.lock.Acquired())
}

func TestIndexText_Busy(t *testing.T) {
	fx := newIndexingFixture(t)
	acquired, err := fx.lock.Acquire(context.Background(), "index:"+testIndexPath, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = fx.orchestrator.IndexText(context.Background(), "doc-1", policyText, nil)
	assert.True(t, errors.Is(err, domain.ErrIndexBusy))
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 0, fx.factory.Disk.Persists())
}

func TestAcquire_ExtendsLockWhileHeld(t *testing.T) {
	fx := newIndexingFixture(t)
	fx.orchestrator.lockTTL = 20 * time.Millisecond

	var extends atomic.Int32
	fx.lock.ExtendFn = func(name string, ttl time.Duration) error {
		assert.Equal(t, "index:"+testIndexPath, name)
		extends.Add(1)
		return nil
	}

	release, err := fx.orchestrator.acquire(context.Background())
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	release()

	seen := extends.Load()
	assert.GreaterOrEqual(t, seen, int32(1))
	assert.False(t, fx.lock.IsHeld("index:"+testIndexPath))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, seen, extends.Load(), "no extension after release")
}

func TestIndexText_EmbeddingFailureKeepsLiveIndex(t *testing.T) {
	fx := newIndexingFixture(t)
	ctx := context.Background()

	_, err := fx.orchestrator.IndexText(ctx, "doc-1", policyText, nil)
	require.NoError(t, err)
	before := fx.services.Index()

	fx.embedding.SetFailNext(true)
	_, err = fx.orchestrator.IndexText(ctx, "doc-2", "Another document.", nil)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingProvider))

	assert.Same(t, before, fx.services.Index())
	assert.Equal(t, 1, fx.factory.Disk.Persists())
}

func TestIndexText_PersistFailure(t *testing.T) {
	fx := newIndexingFixture(t)
	fx.factory.Disk.PersistErr = domain.ErrStorage

	_, err := fx.orchestrator.IndexText(context.Background(), "doc-1", policyText, nil)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.Nil(t, fx.services.Index())
}

func TestIndexFile_Success(t *testing.T) {
	fx := newIndexingFixture(t)
	record := fx.upload(t, "policy.pdf", policyText)

	result, err := fx.orchestrator.IndexFile(context.Background(), record.ID, record.Path, record.Filename)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunkCount)

	stored, err := fx.documents.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusIndexed, stored.Status)
	assert.Equal(t, 3, stored.ChunkCount)

	p := fx.services.Index().Passages()[1]
	assert.Equal(t, "policy.pdf", p.Source())
	assert.Equal(t, "COVERAGE", p.Section())
	assert.Equal(t, "Policy", p.Metadata[domain.MetaTitle])
	assert.Equal(t, "Acme", p.Metadata[domain.MetaAuthor])
	assert.Equal(t, domain.UnknownValue, p.Metadata[domain.MetaCreatedDate])

	assert.Empty(t, fx.files.Removed(), "uploads are kept by default")
}

func TestIndexFile_ExtractionFailureRemovesUpload(t *testing.T) {
	fx := newIndexingFixture(t)
	record := fx.upload(t, "broken.pdf", "ignored")
	fx.extractor.Err = domain.ErrExtraction

	_, err := fx.orchestrator.IndexFile(context.Background(), record.ID, record.Path, record.Filename)
	assert.True(t, errors.Is(err, domain.ErrExtraction))

	assert.Equal(t, []string{record.Path}, fx.files.Removed())
	stored, _ := fx.documents.Get(context.Background(), record.ID)
	assert.Equal(t, domain.IndexStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
	assert.Equal(t, 0, fx.embedding.EmbedCalls(), "chunking must not start")
}

func TestIndexFile_RetryableKeepsUpload(t *testing.T) {
	fx := newIndexingFixture(t)
	record := fx.upload(t, "policy.pdf", policyText)
	fx.embedding.SetFailNextWith(errors.Join(domain.ErrEmbeddingProvider, domain.ErrProviderTimeout))

	_, err := fx.orchestrator.IndexFile(context.Background(), record.ID, record.Path, record.Filename)
	assert.True(t, domain.IsRetryable(err))

	assert.Empty(t, fx.files.Removed())
	stored, _ := fx.documents.Get(context.Background(), record.ID)
	assert.Equal(t, domain.IndexStatusProcessing, stored.Status)
}

func TestIndexFile_EmptyDocument(t *testing.T) {
	fx := newIndexingFixture(t)
	record := fx.upload(t, "blank.pdf", "")

	result, err := fx.orchestrator.IndexFile(context.Background(), record.ID, record.Path, record.Filename)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusEmpty, result.Status)

	stored, _ := fx.documents.Get(context.Background(), record.ID)
	assert.Equal(t, domain.IndexStatusEmpty, stored.Status)
}

func TestIndexFile_UnsupportedType(t *testing.T) {
	fx := newIndexingFixture(t)

	_, err := fx.orchestrator.IndexFile(context.Background(), "doc-1", "mem://1/x.zip", "x.zip")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedMediaType))
	assert.Equal(t, []string{"mem://1/x.zip"}, fx.files.Removed())
}

func TestReload(t *testing.T) {
	fx := newIndexingFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.orchestrator.Reload(ctx))
	assert.Nil(t, fx.services.Index(), "nothing persisted yet")

	_, err := fx.orchestrator.IndexText(ctx, "doc-1", policyText, nil)
	require.NoError(t, err)
	fx.services.SetIndex(nil)

	require.NoError(t, fx.orchestrator.Reload(ctx))
	require.NotNil(t, fx.services.Index())
	assert.Equal(t, 3, fx.services.Index().Len())
}
