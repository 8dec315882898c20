package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/askmydocs/internal/chunker"
	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driving"
	"github.com/custodia-labs/askmydocs/internal/runtime"
)

// Ensure IndexingOrchestrator implements IndexingService
var _ driving.IndexingService = (*IndexingOrchestrator)(nil)

const lockPollInterval = 100 * time.Millisecond

// IndexingOrchestrator runs extract, chunk, embed, persist for one document
// and swaps the result into the live index.
//
// Writers to one index path are serialized through the distributed lock.
// Each write stages a fresh index instance (existing bundle plus the new
// document) so readers keep searching the old instance until the swap.
type IndexingOrchestrator struct {
	chunker     *chunker.Chunker
	extractors  driven.ExtractorRegistry
	factory     driven.VectorIndexFactory
	services    *runtime.Services
	lock        driven.DistributedLock
	files       driven.FileStore
	documents   driven.DocumentStore
	logger      *slog.Logger
	indexPath   string
	lockTTL     time.Duration
	lockWait    time.Duration
	keepUploads bool
}

// IndexingConfig holds configuration for the orchestrator.
type IndexingConfig struct {
	Chunker    *chunker.Chunker
	Extractors driven.ExtractorRegistry
	Factory    driven.VectorIndexFactory
	Services   *runtime.Services
	Lock       driven.DistributedLock
	Files      driven.FileStore
	Documents  driven.DocumentStore // Optional: registry status updates
	Logger     *slog.Logger

	IndexPath   string
	LockTTL     time.Duration // default: 10m
	LockWait    time.Duration // default: 30s
	KeepUploads bool
}

// NewIndexingOrchestrator creates a new orchestrator.
func NewIndexingOrchestrator(cfg IndexingConfig) *IndexingOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 10 * time.Minute
	}
	lockWait := cfg.LockWait
	if lockWait == 0 {
		lockWait = 30 * time.Second
	}

	return &IndexingOrchestrator{
		chunker:     cfg.Chunker,
		extractors:  cfg.Extractors,
		factory:     cfg.Factory,
		services:    cfg.Services,
		lock:        cfg.Lock,
		files:       cfg.Files,
		documents:   cfg.Documents,
		logger:      logger,
		indexPath:   cfg.IndexPath,
		lockTTL:     lockTTL,
		lockWait:    lockWait,
		keepUploads: cfg.KeepUploads,
	}
}

// IndexFile extracts a stored upload and indexes its text.
// Non-retryable failures remove the upload and mark the record failed;
// retryable ones leave both in place for the next attempt.
func (o *IndexingOrchestrator) IndexFile(ctx context.Context, documentID, path, filename string) (*domain.IndexResult, error) {
	start := time.Now()
	o.logger.Info("indexing document", "document_id", documentID, "filename", filename)

	result, err := o.indexFile(ctx, documentID, path, filename)
	if err != nil {
		if domain.IsRetryable(err) {
			o.logger.Warn("indexing deferred", "document_id", documentID, "error", err)
			return nil, err
		}
		o.Discard(ctx, documentID, path, err.Error())
		o.logger.Error("indexing failed", "document_id", documentID, "error", err, "duration", time.Since(start))
		return nil, err
	}

	o.updateRecord(ctx, documentID, func(r *domain.DocumentRecord) { r.Apply(result) })
	if !o.keepUploads {
		o.removeUpload(ctx, path)
	}

	o.logger.Info("document indexed",
		"document_id", documentID,
		"chunks", result.ChunkCount,
		"status", result.Status,
		"duration", time.Since(start),
	)
	return result, nil
}

func (o *IndexingOrchestrator) indexFile(ctx context.Context, documentID, path, filename string) (*domain.IndexResult, error) {
	extractor := o.extractors.ForFile(filename, "")
	if extractor == nil {
		return nil, fmt.Errorf("%w: no extractor for %s", domain.ErrUnsupportedMediaType, filename)
	}

	doc, err := extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	return o.IndexText(ctx, documentID, doc.Text, doc.Metadata(documentID, filename))
}

// Discard marks a document failed and removes its upload. The worker calls
// it when retries are exhausted.
func (o *IndexingOrchestrator) Discard(ctx context.Context, documentID, path, reason string) {
	o.removeUpload(ctx, path)
	o.updateRecord(ctx, documentID, func(r *domain.DocumentRecord) { r.Fail(reason) })
}

// IndexText chunks text and merges the passages into the persisted index,
// replacing any passages previously indexed under documentID.
func (o *IndexingOrchestrator) IndexText(ctx context.Context, documentID, text string, metadata map[string]string) (*domain.IndexResult, error) {
	meta := domain.CopyMetadata(metadata)
	if documentID != "" {
		meta[domain.MetaDocumentID] = documentID
	}

	passages := o.chunker.Chunk(text, meta)
	if len(passages) == 0 {
		return &domain.IndexResult{DocumentID: documentID, Status: domain.IndexStatusEmpty}, nil
	}

	embedder := o.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrConfiguration)
	}

	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	staged, err := o.stage(ctx, embedder, documentID, passages)
	if err != nil {
		return nil, err
	}

	if err := staged.Persist(ctx, o.indexPath); err != nil {
		return nil, err
	}
	o.services.SetIndex(staged)

	return &domain.IndexResult{
		DocumentID: documentID,
		ChunkCount: len(passages),
		Status:     domain.IndexStatusIndexed,
	}, nil
}

// stage builds a new index instance holding the persisted bundle (if any)
// with documentID's passages replaced.
func (o *IndexingOrchestrator) stage(ctx context.Context, embedder driven.EmbeddingService, documentID string, passages []domain.Passage) (driven.VectorIndex, error) {
	staged, err := o.factory.NewIndex(embedder)
	if err != nil {
		return nil, err
	}

	err = staged.Load(ctx, o.indexPath)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if err := staged.Build(ctx, passages); err != nil {
			return nil, err
		}
		return staged, nil
	case err != nil:
		return nil, err
	}

	if documentID != "" {
		removed, err := staged.DeleteDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if removed > 0 {
			o.logger.Info("replacing previously indexed passages", "document_id", documentID, "removed", removed)
		}
	}
	if err := staged.Append(ctx, passages); err != nil {
		return nil, err
	}
	return staged, nil
}

// acquire takes the writer lock for the index path, polling until lockWait
// elapses. Returns domain.ErrIndexBusy if another writer keeps it.
func (o *IndexingOrchestrator) acquire(ctx context.Context) (func(), error) {
	name := "index:" + o.indexPath
	deadline := time.Now().Add(o.lockWait)

	for {
		acquired, err := o.lock.Acquire(ctx, name, o.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", name, err)
		}
		if acquired {
			stop := o.keepAlive(ctx, name)
			return func() {
				stop()
				// Release with a fresh context so a cancelled request still unlocks
				if err := o.lock.Release(context.WithoutCancel(ctx), name); err != nil {
					o.logger.Warn("failed to release index lock", "lock", name, "error", err)
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w", o.indexPath, domain.ErrIndexBusy)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// keepAlive extends the held lock every half TTL until the returned func is
// called, so embedding a large document cannot outlive the lock.
func (o *IndexingOrchestrator) keepAlive(ctx context.Context, name string) func() {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(o.lockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				if err := o.lock.Extend(ctx, name, o.lockTTL); err != nil {
					o.logger.Warn("failed to extend index lock", "lock", name, "error", err)
					return
				}
			}
		}
	}()

	return func() {
		close(stopCh)
		<-doneCh
	}
}

// Reload replaces the live index with the persisted bundle.
// A missing bundle leaves the live index as it is.
func (o *IndexingOrchestrator) Reload(ctx context.Context) error {
	embedder := o.services.EmbeddingService()
	if embedder == nil {
		return fmt.Errorf("%w: no embedding provider configured", domain.ErrConfiguration)
	}

	idx, err := o.factory.NewIndex(embedder)
	if err != nil {
		return err
	}
	if err := idx.Load(ctx, o.indexPath); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			o.logger.Info("no persisted index yet", "path", o.indexPath)
			return nil
		}
		return err
	}

	o.services.SetIndex(idx)
	o.logger.Info("index loaded", "path", o.indexPath, "passages", idx.Len())
	return nil
}

func (o *IndexingOrchestrator) removeUpload(ctx context.Context, path string) {
	if o.files == nil || path == "" {
		return
	}
	if err := o.files.Remove(ctx, path); err != nil {
		o.logger.Warn("failed to remove upload", "path", path, "error", err)
	}
}

func (o *IndexingOrchestrator) updateRecord(ctx context.Context, documentID string, apply func(*domain.DocumentRecord)) {
	if o.documents == nil || documentID == "" {
		return
	}
	record, err := o.documents.Get(ctx, documentID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn("failed to load document record", "document_id", documentID, "error", err)
		}
		return
	}
	apply(record)
	if err := o.documents.Save(ctx, record); err != nil {
		o.logger.Warn("failed to update document record", "document_id", documentID, "error", err)
	}
}
