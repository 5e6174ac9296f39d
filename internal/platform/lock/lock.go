// Package lock provides keyed mutual exclusion: an in-process implementation
// for a single instance and a redis (RedLock) implementation for several
// instances sharing one database.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLockTimeout is returned when the key could not be acquired before
	// the context deadline or after the configured tries.
	ErrLockTimeout = errors.New("lock acquisition timed out")
	// ErrLockNotHeld is returned when releasing a lock that is not held.
	ErrLockNotHeld = errors.New("lock was not held or already expired")
	// ErrEmptyLockKey is returned when an empty key is provided.
	ErrEmptyLockKey = errors.New("lock key cannot be empty")
	// ErrNilLockFn is returned when a nil function is passed to WithLock.
	ErrNilLockFn = errors.New("lock function is nil")
)

// Handle represents an acquired lock. It must be released with Unlock.
type Handle interface {
	Unlock(ctx context.Context) error
}

// Manager acquires keyed locks.
//
//	handle, err := locker.Acquire(ctx, "ledger:item:123")
//	if err != nil {
//	    return err
//	}
//	defer handle.Unlock(ctx)
type Manager interface {
	// Acquire blocks until key is held or ctx is done. A deadline or an
	// exhausted retry budget yields an error wrapping ErrLockTimeout.
	Acquire(ctx context.Context, key string) (Handle, error)
}

// WithLock runs fn while holding key. The lock is released when fn returns,
// even on panic.
func WithLock(ctx context.Context, m Manager, key string, fn func(context.Context) error) error {
	if fn == nil {
		return ErrNilLockFn
	}

	h, err := m.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = h.Unlock(context.WithoutCancel(ctx)) }()

	return fn(ctx)
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyLockKey
	}
	return nil
}

// contextError maps a done context to the lock error callers expect.
func contextError(ctx context.Context, key string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
	return fmt.Errorf("acquire %s: %w", key, ctx.Err())
}
