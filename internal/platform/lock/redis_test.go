package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, opts RedisOptions) *RedisManager {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m, err := NewRedisManager(context.Background(), client, opts, nil)
	require.NoError(t, err)
	return m
}

func TestRedisManager_AcquireRelease(t *testing.T) {
	m := setupTestRedis(t, DefaultRedisOptions())

	executed := false
	err := WithLock(context.Background(), m, "ledger:item:1", func(context.Context) error {
		executed = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, executed)
}

func TestRedisManager_Contention(t *testing.T) {
	opts := DefaultRedisOptions()
	opts.Tries = 2
	opts.RetryDelay = 5 * time.Millisecond
	m := setupTestRedis(t, opts)

	h, err := m.Acquire(context.Background(), "ledger:item:1")
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), "ledger:item:1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, h.Unlock(context.Background()))
	assert.ErrorIs(t, h.Unlock(context.Background()), ErrLockNotHeld)

	h2, err := m.Acquire(context.Background(), "ledger:item:1")
	require.NoError(t, err)
	require.NoError(t, h2.Unlock(context.Background()))
}

func TestRedisManager_Serialises(t *testing.T) {
	m := setupTestRedis(t, DefaultRedisOptions())

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(context.Background(), m, "ledger:item:1", func(context.Context) error {
				v := atomic.LoadInt64(&counter)
				time.Sleep(5 * time.Millisecond)
				atomic.StoreInt64(&counter, v+1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), counter, "no lost updates under the lock")
}

func TestNewRedisManager_Validation(t *testing.T) {
	_, err := NewRedisManager(context.Background(), nil, DefaultRedisOptions(), nil)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bad := DefaultRedisOptions()
	bad.Tries = 0
	_, err = NewRedisManager(context.Background(), client, bad, nil)
	assert.Error(t, err)

	_, err = (&RedisManager{}).Acquire(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyLockKey)
}
