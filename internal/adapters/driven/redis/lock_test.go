package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

const indexLock = "index:data/vector_store"

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestLock_OwnerIDsAreUnique(t *testing.T) {
	_, client := setupTestRedis(t)

	assert.NotEqual(t, NewLock(client).OwnerID(), NewLock(client).OwnerID())
}

func TestLock_SecondWriterIsRefused(t *testing.T) {
	mr, client := setupTestRedis(t)
	api, worker := NewLock(client), NewLock(client)
	ctx := context.Background()

	ok, err := api.Acquire(ctx, indexLock, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = worker.Acquire(ctx, indexLock, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// Not reentrant either
	ok, err = api.Acquire(ctx, indexLock, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	holder, err := mr.Get(lockPrefix + indexLock)
	require.NoError(t, err)
	assert.Equal(t, api.OwnerID(), holder)
}

func TestLock_ReleaseHandsOver(t *testing.T) {
	_, client := setupTestRedis(t)
	api, worker := NewLock(client), NewLock(client)
	ctx := context.Background()

	_, err := api.Acquire(ctx, indexLock, 10*time.Second)
	require.NoError(t, err)

	// A non-owner release is a no-op
	require.NoError(t, worker.Release(ctx, indexLock))
	ok, err := worker.Acquire(ctx, indexLock, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, api.Release(ctx, indexLock))
	ok, err = worker.Acquire(ctx, indexLock, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_ReleaseUnheld(t *testing.T) {
	_, client := setupTestRedis(t)

	assert.NoError(t, NewLock(client).Release(context.Background(), indexLock))
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	crashed, worker := NewLock(client), NewLock(client)
	ctx := context.Background()

	_, err := crashed.Acquire(ctx, indexLock, 2*time.Second)
	require.NoError(t, err)

	mr.FastForward(3 * time.Second)

	ok, err := worker.Acquire(ctx, indexLock, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	owner, other := NewLock(client), NewLock(client)
	ctx := context.Background()

	_, err := owner.Acquire(ctx, indexLock, time.Second)
	require.NoError(t, err)
	require.NoError(t, owner.Extend(ctx, indexLock, 10*time.Second))
	assert.Greater(t, mr.TTL(lockPrefix+indexLock), 5*time.Second)

	assert.ErrorIs(t, other.Extend(ctx, indexLock, 10*time.Second), domain.ErrIndexBusy)
	assert.ErrorIs(t, owner.Extend(ctx, "index:other", 10*time.Second), domain.ErrIndexBusy)
}

func TestLock_NamesAreIndependent(t *testing.T) {
	_, client := setupTestRedis(t)
	lock := NewLock(client)
	ctx := context.Background()

	for _, name := range []string{"index:a", "index:b"} {
		ok, err := lock.Acquire(ctx, name, 10*time.Second)
		require.NoError(t, err)
		assert.True(t, ok, name)
	}
}

func TestLock_BackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	lock := NewLock(client)
	require.NoError(t, lock.Ping(context.Background()))

	mr.Close()

	_, err = lock.Acquire(context.Background(), indexLock, time.Second)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Error(t, lock.Ping(context.Background()))
}
