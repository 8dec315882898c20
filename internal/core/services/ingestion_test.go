package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven/mocks"
)

type ingestionFixture struct {
	svc       *ingestionService
	files     *mocks.MockFileStore
	documents *mocks.MockDocumentStore
	queue     *mocks.MockTaskQueue
}

func newIngestionFixture(maxBytes int64) *ingestionFixture {
	fx := &ingestionFixture{
		files:     mocks.NewMockFileStore(),
		documents: mocks.NewMockDocumentStore(),
		queue:     mocks.NewMockTaskQueue(),
	}
	fx.svc = NewIngestionService(IngestionConfig{
		Extractors: mocks.NewMockExtractorRegistry(mocks.NewMockExtractor()),
		Files:      fx.files,
		Documents:  fx.documents,
		TaskQueue:  fx.queue,
		MaxBytes:   maxBytes,
	}).(*ingestionService)
	return fx
}

func TestIngestion_Submit(t *testing.T) {
	fx := newIngestionFixture(0)
	ctx := context.Background()

	record, err := fx.svc.Submit(ctx, "policy.pdf", "application/pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)

	assert.Equal(t, domain.IndexStatusProcessing, record.Status)
	assert.Equal(t, "policy.pdf", record.Filename)
	assert.Equal(t, int64(13), record.SizeBytes)

	content, ok := fx.files.Content(record.Path)
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.4 body", string(content))

	stored, err := fx.svc.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)

	tasks := fx.queue.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskTypeIndexDocument, tasks[0].Type)
	assert.Equal(t, record.ID, tasks[0].DocumentID())
	assert.Equal(t, record.Path, tasks[0].FilePath())
	assert.Equal(t, "policy.pdf", tasks[0].Filename())
}

func TestIngestion_StripsDirectories(t *testing.T) {
	fx := newIngestionFixture(0)

	record, err := fx.svc.Submit(context.Background(), "../../etc/policy.pdf", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "policy.pdf", record.Filename)
}

func TestIngestion_Unsupported(t *testing.T) {
	fx := newIngestionFixture(0)

	_, err := fx.svc.Submit(context.Background(), "photo.png", "image/png", strings.NewReader("png"))
	assert.True(t, errors.Is(err, domain.ErrUnsupportedMediaType))
	assert.Contains(t, err.Error(), ".pdf")

	count, _ := fx.documents.Count(context.Background())
	assert.Equal(t, 0, count)
	assert.Empty(t, fx.queue.Tasks())
}

func TestIngestion_InvalidUploads(t *testing.T) {
	fx := newIngestionFixture(4)
	ctx := context.Background()

	_, err := fx.svc.Submit(ctx, "", "", strings.NewReader("x"))
	assert.True(t, errors.Is(err, domain.ErrInvalidUpload))

	_, err = fx.svc.Submit(ctx, "big.pdf", "", strings.NewReader("too large"))
	assert.True(t, errors.Is(err, domain.ErrInvalidUpload))

	_, err = fx.svc.Submit(ctx, "empty.pdf", "", strings.NewReader(""))
	assert.True(t, errors.Is(err, domain.ErrInvalidUpload))
	assert.Len(t, fx.files.Removed(), 1)

	assert.Empty(t, fx.queue.Tasks())
}

func TestIngestion_EnqueueFailureRollsBack(t *testing.T) {
	fx := newIngestionFixture(0)
	fx.queue.EnqueueErr = errors.New("redis down")

	_, err := fx.svc.Submit(context.Background(), "policy.pdf", "", strings.NewReader("body"))
	require.Error(t, err)

	count, _ := fx.documents.Count(context.Background())
	assert.Equal(t, 0, count)
	assert.Len(t, fx.files.Removed(), 1)
}

func TestIngestion_RecordFailureRemovesFile(t *testing.T) {
	fx := newIngestionFixture(0)
	fx.documents.SaveErr = domain.ErrStorage

	_, err := fx.svc.Submit(context.Background(), "policy.pdf", "", strings.NewReader("body"))
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.Len(t, fx.files.Removed(), 1)
	assert.Empty(t, fx.queue.Tasks())
}

func TestIngestion_List(t *testing.T) {
	fx := newIngestionFixture(0)
	ctx := context.Background()
	for _, name := range []string{"a.pdf", "b.pdf", "c.txt"} {
		_, err := fx.svc.Submit(ctx, name, "", strings.NewReader("body"))
		require.NoError(t, err)
	}

	all, err := fx.svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := fx.svc.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	assert.Equal(t, []string{".pdf", ".txt"}, fx.svc.Extensions())
}
