package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askmydocs/internal/adapters/driven/memory"
	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// mockTaskQueue implements driven.TaskQueue for testing
type mockTaskQueue struct {
	mu        sync.Mutex
	tasks     []*domain.Task
	dequeueFn func() (*domain.Task, error)
	pingFn    func() error

	acked  []string
	nacked []string
	failed []string
}

func newMockTaskQueue(tasks ...*domain.Task) *mockTaskQueue {
	return &mockTaskQueue{tasks: tasks}
}

func (m *mockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if m.dequeueFn != nil {
		time.Sleep(5 * time.Millisecond)
		return m.dequeueFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	task.MarkProcessing()
	return task, nil
}

func (m *mockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, taskID)
	return nil
}

func (m *mockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nacked = append(m.nacked, taskID)
	return nil
}

func (m *mockTaskQueue) Fail(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, taskID)
	return nil
}

func (m *mockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return nil, nil
}

func (m *mockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	return &driven.QueueStats{}, nil
}

func (m *mockTaskQueue) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn()
	}
	return nil
}

func (m *mockTaskQueue) Close() error {
	return nil
}

func (m *mockTaskQueue) settled() (acked, nacked, failed []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...), append([]string(nil), m.nacked...), append([]string(nil), m.failed...)
}

// mockIndexer records IndexFile and Discard calls
type mockIndexer struct {
	mu        sync.Mutex
	indexFn   func(documentID string) error
	indexed   []string
	discarded []string
}

func (m *mockIndexer) IndexFile(ctx context.Context, documentID, path, filename string) (*domain.IndexResult, error) {
	m.mu.Lock()
	m.indexed = append(m.indexed, documentID)
	m.mu.Unlock()
	if m.indexFn != nil {
		if err := m.indexFn(documentID); err != nil {
			return nil, err
		}
	}
	return &domain.IndexResult{DocumentID: documentID, ChunkCount: 2, Status: domain.IndexStatusIndexed}, nil
}

func (m *mockIndexer) Discard(ctx context.Context, documentID, path, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discarded = append(m.discarded, documentID)
}

func indexTask() *domain.Task {
	record := domain.NewDocumentRecord("policy.pdf", "/uploads/x_policy.pdf", "application/pdf", 10)
	return domain.NewIndexDocumentTask(record)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: newMockTaskQueue()})

	assert.Equal(t, 1, w.concurrency)
	assert.Equal(t, 5, w.dequeueTimeout)
	assert.NotNil(t, w.logger)
}

func TestNewWorker(t *testing.T) {
	w := NewWorker(WorkerConfig{
		TaskQueue:      newMockTaskQueue(),
		Indexer:        &mockIndexer{},
		Logger:         quietLogger(),
		Concurrency:    4,
		DequeueTimeout: 2,
	})

	assert.Equal(t, 4, w.concurrency)
	assert.Equal(t, 2, w.dequeueTimeout)
}

func TestWorker_StartStop(t *testing.T) {
	w := NewWorker(WorkerConfig{TaskQueue: newMockTaskQueue(), Indexer: &mockIndexer{}, Logger: quietLogger(), Concurrency: 2})

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()), "second start is a no-op")
	assert.True(t, w.Health(context.Background()).Running)

	w.Stop()
	assert.False(t, w.Health(context.Background()).Running)

	// Stopping twice is safe
	w.Stop()
}

func TestWorker_Health_QueueError(t *testing.T) {
	queue := newMockTaskQueue()
	queue.pingFn = func() error { return errors.New("connection refused") }
	w := NewWorker(WorkerConfig{TaskQueue: queue, Logger: quietLogger()})

	health := w.Health(context.Background())
	assert.False(t, health.QueueHealth)
	assert.Equal(t, "connection refused", health.Error)
}

func TestWorker_ProcessTask(t *testing.T) {
	timeout := fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, domain.ErrProviderTimeout)
	busy := fmt.Errorf("index data/vector_store: %w", domain.ErrIndexBusy)

	tests := []struct {
		name        string
		err         error
		attempts    int
		wantAck     bool
		wantNack    bool
		wantFail    bool
		wantDiscard bool
	}{
		{name: "success", attempts: 1, wantAck: true},
		{name: "timeout with attempts left", err: timeout, attempts: 1, wantNack: true},
		{name: "busy with attempts left", err: busy, attempts: 2, wantNack: true},
		{name: "timeout exhausted", err: timeout, attempts: 3, wantFail: true, wantDiscard: true},
		{name: "not retryable", err: fmt.Errorf("%w: not a PDF", domain.ErrExtraction), attempts: 1, wantFail: true},
		{name: "auth not retryable", err: fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, domain.ErrProviderAuth), attempts: 1, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := newMockTaskQueue()
			indexer := &mockIndexer{indexFn: func(string) error { return tt.err }}
			w := NewWorker(WorkerConfig{TaskQueue: queue, Indexer: indexer, Logger: quietLogger()})

			task := indexTask()
			task.Attempts = tt.attempts
			w.processTask(context.Background(), task, w.logger)

			acked, nacked, failed := queue.settled()
			assert.Equal(t, tt.wantAck, len(acked) == 1, "ack")
			assert.Equal(t, tt.wantNack, len(nacked) == 1, "nack")
			assert.Equal(t, tt.wantFail, len(failed) == 1, "fail")
			assert.Equal(t, tt.wantDiscard, len(indexer.discarded) == 1, "discard")
			assert.Equal(t, []string{task.DocumentID()}, indexer.indexed)
		})
	}
}

func TestWorker_ProcessTask_UnknownType(t *testing.T) {
	queue := newMockTaskQueue()
	indexer := &mockIndexer{}
	w := NewWorker(WorkerConfig{TaskQueue: queue, Indexer: indexer, Logger: quietLogger()})

	task := domain.NewTask("reindex_everything", nil)
	w.processTask(context.Background(), task, w.logger)

	_, _, failed := queue.settled()
	assert.Equal(t, []string{task.ID}, failed)
	assert.Empty(t, indexer.indexed)
}

func TestWorker_ProcessTask_MissingPayload(t *testing.T) {
	queue := newMockTaskQueue()
	indexer := &mockIndexer{}
	w := NewWorker(WorkerConfig{TaskQueue: queue, Indexer: indexer, Logger: quietLogger()})

	task := domain.NewTask(domain.TaskTypeIndexDocument, map[string]string{domain.PayloadDocumentID: "doc-1"})
	w.processTask(context.Background(), task, w.logger)

	_, _, failed := queue.settled()
	assert.Equal(t, []string{task.ID}, failed)
	assert.Empty(t, indexer.indexed)
}

func TestWorker_ProcessLoop_MemoryQueue(t *testing.T) {
	queue := memory.NewQueue()
	ctx := context.Background()

	ok := indexTask()
	broken := indexTask()
	require.NoError(t, queue.Enqueue(ctx, ok))
	require.NoError(t, queue.Enqueue(ctx, broken))

	indexer := &mockIndexer{indexFn: func(id string) error {
		if id == broken.DocumentID() {
			return fmt.Errorf("%w: no text", domain.ErrExtraction)
		}
		return nil
	}}
	w := NewWorker(WorkerConfig{TaskQueue: queue, Indexer: indexer, Logger: quietLogger(), Concurrency: 2, DequeueTimeout: 1})
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.Eventually(t, func() bool {
		stats, err := queue.Stats(ctx)
		return err == nil && stats.CompletedCount == 1 && stats.FailedCount == 1
	}, 3*time.Second, 10*time.Millisecond)

	got, err := queue.GetTask(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "no text")
}

func TestWorker_ProcessLoop_DequeueError(t *testing.T) {
	queue := newMockTaskQueue()
	var calls int
	var mu sync.Mutex
	queue.dequeueFn = func() (*domain.Task, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, errors.New("redis: connection refused")
		}
		return nil, nil
	}

	w := NewWorker(WorkerConfig{TaskQueue: queue, Indexer: &mockIndexer{}, Logger: quietLogger()})
	require.NoError(t, w.Start(context.Background()))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls > 1
	}, 3*time.Second, 10*time.Millisecond, "worker keeps polling after a dequeue error")
	w.Stop()
}

func TestWorker_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(WorkerConfig{TaskQueue: newMockTaskQueue(), Indexer: &mockIndexer{}, Logger: quietLogger(), Concurrency: 3})
	require.NoError(t, w.Start(ctx))

	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after context cancellation")
	}
}
