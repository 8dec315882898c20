package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure Queue implements TaskQueue
var _ driven.TaskQueue = (*Queue)(nil)

// pollInterval is how often a waiting dequeue looks for new rows
var pollInterval = 500 * time.Millisecond

// Queue implements TaskQueue on PostgreSQL with SELECT ... FOR UPDATE SKIP
// LOCKED, so several workers can share one table. Useful when the registry
// already lives in Postgres and Redis is not deployed.
type Queue struct {
	db *sql.DB
}

// NewQueue creates a PostgreSQL-backed task queue. Call InitSchema once
// before use.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// InitSchema creates the tasks table. Safe to run repeatedly.
func (q *Queue) InitSchema(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, CreateTasksTableSQL); err != nil {
		return fmt.Errorf("%w: create tasks table: %v", domain.ErrStorage, err)
	}
	return nil
}

const taskColumns = `id, type, payload, status, priority, attempts, max_attempts, error,
	created_at, updated_at, started_at, completed_at, scheduled_for`

// Enqueue adds a task to the queue
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	if err := q.save(ctx, q.db, task, true); err != nil {
		return err
	}
	return nil
}

// DequeueWithTimeout claims the next ready task, polling for up to
// timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	for {
		task, err := q.claim(ctx)
		if err != nil || task != nil {
			return task, err
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(min(wait, pollInterval)):
		}
	}
}

func (q *Queue) claim(ctx context.Context) (*domain.Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", domain.ErrStorage, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = $1 AND scheduled_for <= NOW()
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, domain.TaskStatusPending)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select task: %v", domain.ErrStorage, err)
	}

	task.MarkProcessing()
	if err := q.save(ctx, tx, task, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit dequeue: %v", domain.ErrStorage, err)
	}
	return task, nil
}

// Ack marks a task as completed
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	return q.update(ctx, taskID, func(t *domain.Task) {
		t.MarkCompleted()
	})
}

// Nack schedules a retry with exponential backoff, or marks the task
// failed once its attempts are used up.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	return q.update(ctx, taskID, func(t *domain.Task) {
		if t.CanRetry() {
			t.Retry(reason)
			return
		}
		t.MarkFailed(reason)
	})
}

// Fail marks a task failed without retrying
func (q *Queue) Fail(ctx context.Context, taskID string, reason string) error {
	return q.update(ctx, taskID, func(t *domain.Task) {
		t.MarkFailed(reason)
	})
}

// update locks the row, applies the state change and writes it back.
func (q *Queue) update(ctx context.Context, taskID string, apply func(*domain.Task)) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", domain.ErrStorage, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	task, err := scanTask(tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: select task %s: %v", domain.ErrStorage, taskID, err)
	}

	apply(task)
	if err := q.save(ctx, tx, task, false); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit task %s: %v", domain.ErrStorage, taskID, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (q *Queue) save(ctx context.Context, db execer, task *domain.Task, insert bool) error {
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		UPDATE tasks SET
			type = $2, payload = $3, status = $4, priority = $5, attempts = $6,
			max_attempts = $7, error = $8, created_at = $9, updated_at = $10,
			started_at = $11, completed_at = $12, scheduled_for = $13
		WHERE id = $1`
	if insert {
		query = `INSERT INTO tasks (` + taskColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	}

	_, err = db.ExecContext(ctx, query,
		task.ID,
		string(task.Type),
		payload,
		string(task.Status),
		task.Priority,
		task.Attempts,
		task.MaxAttempts,
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
		nullTime(task.StartedAt),
		nullTime(task.CompletedAt),
		task.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("%w: save task %s: %v", domain.ErrStorage, task.ID, err)
	}
	return nil
}

// GetTask retrieves a task by ID, or nil if it does not exist
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := scanTask(q.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query task %s: %v", domain.ErrStorage, taskID, err)
	}
	return task, nil
}

// Stats returns queue statistics
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%w: query stats: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	stats := &driven.QueueStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%w: scan stats: %v", domain.ErrStorage, err)
		}

		switch domain.TaskStatus(status) {
		case domain.TaskStatusPending:
			stats.PendingCount = count
		case domain.TaskStatusProcessing:
			stats.ProcessingCount = count
		case domain.TaskStatusCompleted:
			stats.CompletedCount = count
		case domain.TaskStatusFailed:
			stats.FailedCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query stats: %v", domain.ErrStorage, err)
	}
	return stats, nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op; the connection pool is owned by the caller
func (q *Queue) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var taskType, status string
	var payload []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&taskType,
		&payload,
		&status,
		&task.Priority,
		&task.Attempts,
		&task.MaxAttempts,
		&task.Error,
		&task.CreatedAt,
		&task.UpdatedAt,
		&startedAt,
		&completedAt,
		&task.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}

	task.Type = domain.TaskType(taskType)
	task.Status = domain.TaskStatus(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// CreateTasksTableSQL creates the tasks table used by Queue
const CreateTasksTableSQL = `
CREATE TABLE IF NOT EXISTS tasks (
    id            TEXT PRIMARY KEY,
    type          TEXT NOT NULL,
    payload       JSONB NOT NULL DEFAULT '{}',
    status        TEXT NOT NULL DEFAULT 'pending',
    priority      INTEGER NOT NULL DEFAULT 0,
    attempts      INTEGER NOT NULL DEFAULT 0,
    max_attempts  INTEGER NOT NULL DEFAULT 3,
    error         TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    started_at    TIMESTAMPTZ,
    completed_at  TIMESTAMPTZ,
    scheduled_for TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tasks_pending ON tasks (priority DESC, created_at) WHERE status = 'pending';
`
