package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "askmydocs:lock:"

// Lock serializes index writers across processes and hosts. Each key holds
// the owner token of the process that set it and expires after the TTL, so
// a crashed writer frees the index path on its own.
type Lock struct {
	client *redis.Client
	owner  string
}

// NewLock creates a lock whose owner token is unique to this instance.
func NewLock(client *redis.Client) *Lock {
	hostname, _ := os.Hostname()
	return &Lock{
		client: client,
		owner:  fmt.Sprintf("%s/%d/%s", hostname, os.Getpid(), uuid.NewString()),
	}
}

// Only the owner may delete or extend a key. Both return 1 on success.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("PEXPIRE", KEYS[1], ARGV[2])`)
)

// Acquire sets the key only if it is absent. It does not block and is not
// reentrant: a second Acquire by the same owner reports false.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockPrefix+name, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: acquire lock %s: %v", domain.ErrStorage, name, err)
	}
	return ok, nil
}

// Release deletes the key if this instance still owns it. Releasing an
// expired or foreign lock is a no-op.
func (l *Lock) Release(ctx context.Context, name string) error {
	err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, l.owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: release lock %s: %v", domain.ErrStorage, name, err)
	}
	return nil
}

// Extend resets the TTL of a lock this instance holds. A lock that expired
// or was taken over reports domain.ErrIndexBusy.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{lockPrefix + name}, l.owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: extend lock %s: %v", domain.ErrStorage, name, err)
	}
	if n == 0 {
		return fmt.Errorf("lock %s not held by this instance: %w", name, domain.ErrIndexBusy)
	}
	return nil
}

// Ping checks the Redis connection.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID returns the token stored under every key this instance holds.
func (l *Lock) OwnerID() string {
	return l.owner
}
