package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

var _ driven.TaskQueue = (*MockTaskQueue)(nil)

// MockTaskQueue records queue calls for testing
type MockTaskQueue struct {
	mu    sync.Mutex
	tasks []*domain.Task
	acked map[string]bool
	nacks map[string]string
	fails map[string]string

	// EnqueueErr is returned by Enqueue when set
	EnqueueErr error
}

// NewMockTaskQueue creates a new MockTaskQueue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{
		acked: make(map[string]bool),
		nacks: make(map[string]string),
		fails: make(map[string]string),
	}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.tasks = append(m.tasks, task)
	return nil
}

// DequeueWithTimeout pops the oldest enqueued task without waiting
func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil, nil
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	task.MarkProcessing()
	return task, nil
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked[taskID] = true
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nacks[taskID] = reason
	return nil
}

func (m *MockTaskQueue) Fail(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fails[taskID] = reason
	return nil
}

func (m *MockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return nil, nil
}

func (m *MockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &driven.QueueStats{
		PendingCount:   int64(len(m.tasks)),
		CompletedCount: int64(len(m.acked)),
		FailedCount:    int64(len(m.fails)),
	}, nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error {
	return nil
}

func (m *MockTaskQueue) Close() error {
	return nil
}

// Tasks returns the tasks still queued
func (m *MockTaskQueue) Tasks() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// Acked reports whether Ack was called for taskID
func (m *MockTaskQueue) Acked(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked[taskID]
}

// Nacked returns the reason passed to Nack for taskID
func (m *MockTaskQueue) Nacked(taskID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.nacks[taskID]
	return r, ok
}

// Failed returns the reason passed to Fail for taskID
func (m *MockTaskQueue) Failed(taskID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.fails[taskID]
	return r, ok
}
