package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// pollInterval bounds how long a waiting dequeue sleeps before rechecking
// delayed retries.
const pollInterval = 250 * time.Millisecond

// DefaultRetainSettled is how many completed or failed tasks NewQueue keeps
// for GetTask and Stats before dropping the oldest.
const DefaultRetainSettled = 1000

// Queue is an in-process TaskQueue. Tasks are lost when the process exits.
type Queue struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	pending []string
	settled []string // oldest first
	retain  int
	wake    chan struct{}
	closed  bool
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return NewQueueRetaining(DefaultRetainSettled)
}

// NewQueueRetaining creates an empty queue that remembers at most retain
// settled tasks. Pending and in-flight tasks are never dropped.
func NewQueueRetaining(retain int) *Queue {
	return &Queue{
		tasks:  make(map[string]*domain.Task),
		retain: max(retain, 0),
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue adds a copy of task to the queue.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%w: queue closed", domain.ErrStorage)
	}

	copied := *task
	q.tasks[task.ID] = &copied
	q.pending = append(q.pending, task.ID)
	q.signal()
	return nil
}

// DequeueWithTimeout returns the oldest ready task, waiting up to timeout
// seconds. Higher priority tasks go first.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)

	for {
		if task := q.next(); task != nil {
			return task, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}
		wait = min(wait, pollInterval)

		select {
		case <-ctx.Done():
			return nil, nil
		case <-q.wake:
		case <-time.After(wait):
		}
	}
}

func (q *Queue) next() *domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	ready := -1
	for i, id := range q.pending {
		task := q.tasks[id]
		if !task.IsReady() {
			continue
		}
		if ready < 0 || task.Priority > q.tasks[q.pending[ready]].Priority {
			ready = i
		}
	}
	if ready < 0 {
		return nil
	}

	id := q.pending[ready]
	q.pending = append(q.pending[:ready], q.pending[ready+1:]...)

	task := q.tasks[id]
	task.MarkProcessing()
	copied := *task
	return &copied
}

// Ack marks a task completed.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	return q.update(taskID, func(t *domain.Task) {
		t.MarkCompleted()
	})
}

// Nack schedules a retry with backoff, or fails the task once its
// attempts are used up.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	return q.update(taskID, func(t *domain.Task) {
		if !t.CanRetry() {
			t.MarkFailed(reason)
			return
		}
		t.Retry(reason)
		q.pending = append(q.pending, t.ID)
	})
}

// Fail marks a task failed without retrying.
func (q *Queue) Fail(ctx context.Context, taskID string, reason string) error {
	return q.update(taskID, func(t *domain.Task) {
		t.MarkFailed(reason)
	})
}

func (q *Queue) update(taskID string, apply func(*domain.Task)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	wasSettled := isSettled(task.Status)
	apply(task)
	if !wasSettled && isSettled(task.Status) {
		q.settle(taskID)
	}
	return nil
}

// settle records a finished task and forgets the oldest ones past the
// retention limit. Callers hold q.mu.
func (q *Queue) settle(taskID string) {
	q.settled = append(q.settled, taskID)
	for len(q.settled) > q.retain {
		id := q.settled[0]
		q.settled = q.settled[1:]
		// A re-enqueued task with the same id is live again
		if t, ok := q.tasks[id]; ok && isSettled(t.Status) {
			delete(q.tasks, id)
		}
	}
}

func isSettled(status domain.TaskStatus) bool {
	return status == domain.TaskStatusCompleted || status == domain.TaskStatusFailed
}

// GetTask returns a copy of the task, or nil if it is unknown.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, nil
	}
	copied := *task
	return &copied, nil
}

// Stats counts tasks by status.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &driven.QueueStats{}
	for _, t := range q.tasks {
		switch t.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

// Tasks returns every known task ordered by creation time.
func (q *Queue) Tasks() []*domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Ping reports whether the queue is still open
func (q *Queue) Ping(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%w: queue closed", domain.ErrStorage)
	}
	return nil
}

// Close stops accepting tasks.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
