package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

const (
	// Stream names
	taskStream     = "askmydocs:tasks"
	taskGroup      = "askmydocs:workers"
	scheduledTasks = "askmydocs:scheduled"

	// Key prefixes
	taskKeyPrefix = "askmydocs:task:"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// Claim timeout - how long before a task is considered abandoned
	claimTimeout = 5 * time.Minute

	// Task records outlive the stream entry so status can still be polled
	taskTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using Redis Streams.
// Task bodies live in plain keys; the stream only carries task IDs.
// Retries wait in a sorted set scored by their due time and are promoted
// back onto the stream by the next dequeue.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a new Redis-backed task queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(ctx context.Context, client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", domain.ErrConfiguration)
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
	}

	// Create consumer group if it doesn't exist
	err := q.client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("%w: create consumer group: %v", domain.ErrStorage, err)
	}

	return q, nil
}

// Enqueue adds a task to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)

	if task.ScheduledFor.After(time.Now()) {
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
	} else {
		pipe.XAdd(ctx, streamEntry(task))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: enqueue task: %v", domain.ErrStorage, err)
	}
	return nil
}

// DequeueWithTimeout retrieves the next available task, waiting up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	// Best effort; a failure here only delays retries
	_ = q.promoteScheduledTasks(ctx)

	if task, err := q.claimAbandonedTask(ctx); err == nil && task != nil {
		return task, nil
	}

	block := time.Duration(timeout) * time.Second
	if timeout <= 0 {
		block = time.Second
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read from stream: %v", domain.ErrStorage, err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.take(ctx, streams[0].Messages[0])
}

// take loads the task behind a stream message and marks it processing.
// Messages without a task are acknowledged and dropped.
func (q *Queue) take(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	task.MarkProcessing()
	if err := q.save(ctx, q.client, task); err != nil {
		return nil, err
	}
	if err := q.client.Set(ctx, messageKey(task.ID), msg.ID, taskTTL).Err(); err != nil {
		return nil, fmt.Errorf("%w: store message id: %v", domain.ErrStorage, err)
	}
	return task, nil
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	return q.finish(ctx, taskID, func(pipe redis.Pipeliner, task *domain.Task) error {
		task.MarkCompleted()
		return q.save(ctx, pipe, task)
	})
}

// Nack returns the task to the queue with backoff, or marks it failed
// once its attempts are used up.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	return q.finish(ctx, taskID, func(pipe redis.Pipeliner, task *domain.Task) error {
		if !task.CanRetry() {
			task.MarkFailed(reason)
			return q.save(ctx, pipe, task)
		}

		task.Retry(reason)
		if err := q.save(ctx, pipe, task); err != nil {
			return err
		}
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.Unix()),
			Member: task.ID,
		})
		return nil
	})
}

// Fail marks the task failed without retrying.
func (q *Queue) Fail(ctx context.Context, taskID string, reason string) error {
	return q.finish(ctx, taskID, func(pipe redis.Pipeliner, task *domain.Task) error {
		task.MarkFailed(reason)
		return q.save(ctx, pipe, task)
	})
}

// finish acknowledges the task's stream message and applies update in
// the same transaction.
func (q *Queue) finish(ctx context.Context, taskID string, update func(redis.Pipeliner, *domain.Task) error) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}

	msgID, err := q.client.Get(ctx, messageKey(taskID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: get message id: %v", domain.ErrStorage, err)
	}

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}
	if err := update(pipe, task); err != nil {
		return err
	}
	pipe.Del(ctx, messageKey(taskID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: update task %s: %v", domain.ErrStorage, taskID, err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get task: %v", domain.ErrStorage, err)
	}

	var task domain.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("%w: unmarshal task: %v", domain.ErrStorage, err)
	}
	return &task, nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	info, err := q.client.XInfoStream(ctx, taskStream).Result()
	switch {
	case err == nil:
		stats.PendingCount = info.Length
	case !isStreamNotExistsError(err):
		return nil, fmt.Errorf("%w: stream info: %v", domain.ErrStorage, err)
	}

	scheduled, err := q.client.ZCard(ctx, scheduledTasks).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: scheduled count: %v", domain.ErrStorage, err)
	}
	stats.PendingCount += scheduled

	// Completed and failed counts need a scan over task keys
	var cursor uint64
	for {
		keys, next, err := q.client.Scan(ctx, cursor, taskKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: scan tasks: %v", domain.ErrStorage, err)
		}
		for _, key := range keys {
			if strings.HasSuffix(key, ":msg") {
				continue
			}
			data, err := q.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var task domain.Task
			if json.Unmarshal([]byte(data), &task) != nil {
				continue
			}
			switch task.Status {
			case domain.TaskStatusProcessing:
				stats.ProcessingCount++
				stats.PendingCount--
			case domain.TaskStatusCompleted:
				stats.CompletedCount++
			case domain.TaskStatusFailed:
				stats.FailedCount++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if stats.PendingCount < 0 {
		stats.PendingCount = 0
	}
	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

// promoteScheduledTasks moves due scheduled tasks to the main stream.
func (q *Queue) promoteScheduledTasks(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledTasks, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", time.Now().Unix()),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}

	pipe := q.client.TxPipeline()
	for _, taskID := range due {
		pipe.ZRem(ctx, scheduledTasks, taskID)

		task, err := q.GetTask(ctx, taskID)
		if err != nil || task == nil {
			continue
		}
		pipe.XAdd(ctx, streamEntry(task))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandonedTask tries to claim a task that was abandoned by another worker.
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: taskStream,
		Group:  taskGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   taskStream,
			Group:    taskGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		task, err := q.take(ctx, claimed[0])
		if err != nil || task == nil {
			continue
		}
		return task, nil
	}

	return nil, nil
}

func (q *Queue) save(ctx context.Context, c redis.Cmdable, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := c.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL).Err(); err != nil {
		return fmt.Errorf("%w: store task: %v", domain.ErrStorage, err)
	}
	return nil
}

func (q *Queue) drop(ctx context.Context, msgID string) {
	q.client.XAck(ctx, taskStream, taskGroup, msgID)
	q.client.XDel(ctx, taskStream, msgID)
}

func streamEntry(task *domain.Task) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]interface{}{
			"task_id":  task.ID,
			"type":     string(task.Type),
			"priority": task.Priority,
		},
	}
}

func messageKey(taskID string) string {
	return taskKeyPrefix + taskID + ":msg"
}

// Helper functions

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func isStreamNotExistsError(err error) bool {
	return err != nil && (err.Error() == "ERR no such key" ||
		err.Error() == "ERR The XINFO subcommand requires the key to exist")
}
