package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalManager_MutualExclusion(t *testing.T) {
	m := NewLocalManager()

	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(context.Background(), m, "ledger:item:1", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside, "only one holder at a time")
	assert.Zero(t, m.Len(), "entries are dropped once released")
}

func TestLocalManager_DistinctKeysDoNotBlock(t *testing.T) {
	m := NewLocalManager()

	h1, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer h1.Unlock(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	h2, err := m.Acquire(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, h2.Unlock(context.Background()))
}

func TestLocalManager_Timeout(t *testing.T) {
	m := NewLocalManager()

	h, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, h.Unlock(context.Background()))
	assert.ErrorIs(t, h.Unlock(context.Background()), ErrLockNotHeld)
	assert.Zero(t, m.Len())
}

func TestLocalManager_CancelIsNotTimeout(t *testing.T) {
	m := NewLocalManager()

	h, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer h.Unlock(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Acquire(ctx, "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLockTimeout))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLock_Validation(t *testing.T) {
	m := NewLocalManager()

	assert.ErrorIs(t, WithLock(context.Background(), m, "k", nil), ErrNilLockFn)
	assert.ErrorIs(t, WithLock(context.Background(), m, " ", func(context.Context) error { return nil }), ErrEmptyLockKey)

	err := WithLock(context.Background(), m, "k", func(context.Context) error { return assert.AnError })
	assert.Equal(t, assert.AnError, err)
	assert.Zero(t, m.Len(), "released after fn fails")
}
