// Package memory holds single-process implementations of the lock and
// queue ports, used when no Redis or PostgreSQL is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock is an in-process DistributedLock with TTL expiry.
type Lock struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewLock creates an empty lock table
func NewLock() *Lock {
	return &Lock{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire takes name unless another holder's TTL is still running.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, held := l.expires[name]; held && now.Before(until) {
		return false, nil
	}
	l.expires[name] = now.Add(ttl)
	return true, nil
}

// Release frees name. Releasing a free lock is a no-op.
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.expires, name)
	return nil
}

// Extend pushes out the expiry of a held lock.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, held := l.expires[name]; !held || !now.Before(until) {
		return fmt.Errorf("lock %s is not held: %w", name, domain.ErrIndexBusy)
	}
	l.expires[name] = now.Add(ttl)
	return nil
}

// Ping always succeeds
func (l *Lock) Ping(ctx context.Context) error {
	return nil
}
