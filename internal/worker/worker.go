package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
	"github.com/custodia-labs/askmydocs/internal/core/services"
)

// DocumentIndexer is the part of the indexing orchestrator the worker drives.
type DocumentIndexer interface {
	IndexFile(ctx context.Context, documentID, path, filename string) (*domain.IndexResult, error)
	Discard(ctx context.Context, documentID, path, reason string)
}

var _ DocumentIndexer = (*services.IndexingOrchestrator)(nil)

// Worker processes tasks from the task queue.
// It runs the indexing orchestrator for each index_document task.
type Worker struct {
	taskQueue driven.TaskQueue
	indexer   DocumentIndexer
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Indexer        DocumentIndexer
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		indexer:        cfg.Indexer,
		logger:         logger.With("component", "worker"),
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight tasks.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-ctx.Done():
			case <-w.stopCh:
			case <-time.After(time.Second): // Back off on error
			}
			continue
		}
		if task == nil {
			continue
		}

		// In-flight tasks finish even if the worker is asked to stop
		w.processTask(context.WithoutCancel(ctx), task, logger)
	}
}

// processTask runs one task and settles it on the queue.
//
// Success acks. A retryable failure with attempts left nacks so the queue
// reschedules it. Anything else fails the task; a retryable failure that ran
// out of attempts also discards the upload, since the orchestrator only
// discards on its own for non-retryable errors.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "document_id", task.DocumentID())
	logger.Info("processing task", "attempt", task.Attempts)

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeIndexDocument:
		err = w.handleIndexDocument(ctx, task)
	default:
		err = fmt.Errorf("unknown task type: %s", task.Type)
	}

	duration := time.Since(startTime)

	if err == nil {
		logger.Info("task completed", "duration", duration)
		if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
			logger.Error("failed to ack task", "ack_error", ackErr)
		}
		return
	}

	retryable := domain.IsRetryable(err)
	if retryable && task.CanRetry() {
		logger.Warn("task will be retried", "duration", duration, "error", err)
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Error("task failed", "duration", duration, "error", err, "retryable", retryable)
	if retryable && task.Type == domain.TaskTypeIndexDocument {
		w.indexer.Discard(ctx, task.DocumentID(), task.FilePath(), err.Error())
	}
	if failErr := w.taskQueue.Fail(ctx, task.ID, err.Error()); failErr != nil {
		logger.Error("failed to fail task", "fail_error", failErr)
	}
}

// handleIndexDocument handles an index_document task.
func (w *Worker) handleIndexDocument(ctx context.Context, task *domain.Task) error {
	documentID := task.DocumentID()
	if documentID == "" {
		return fmt.Errorf("document_id not found in task payload")
	}
	path := task.FilePath()
	if path == "" {
		return fmt.Errorf("file_path not found in task payload")
	}

	filename := task.Filename()
	if filename == "" {
		filename = path
	}

	_, err := w.indexer.IndexFile(ctx, documentID, path, filename)
	return err
}

// Health reports whether the worker is running and its queue reachable.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
