package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions configures the RedLock mutex.
type RedisOptions struct {
	// Expiry is how long a held lock lives before auto-expiring. It must
	// exceed the longest critical section.
	Expiry time.Duration
	// Tries is the number of acquisition attempts per Acquire call.
	Tries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// DriftFactor accounts for clock drift between redis nodes.
	DriftFactor float64
}

// DefaultRedisOptions returns defaults tuned for short ledger transactions.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Expiry:      10 * time.Second,
		Tries:       20,
		RetryDelay:  50 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

// RedisManager is a Manager backed by redsync, so that several service
// instances exclude each other on the same key.
type RedisManager struct {
	rs     *redsync.Redsync
	opts   RedisOptions
	logger *zap.Logger
}

// NewRedisManager pings the client and builds the manager.
func NewRedisManager(ctx context.Context, client redis.UniversalClient, opts RedisOptions, logger *zap.Logger) (*RedisManager, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}

	if opts.Expiry <= 0 || opts.Tries < 1 || opts.RetryDelay < 0 {
		return nil, fmt.Errorf("invalid redis lock options: %+v", opts)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisManager{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}, nil
}

func (m *RedisManager) Acquire(ctx context.Context, key string) (Handle, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	mutex := m.rs.NewMutex(
		key,
		redsync.WithExpiry(m.opts.Expiry),
		redsync.WithTries(m.opts.Tries),
		redsync.WithRetryDelay(m.opts.RetryDelay),
		redsync.WithDriftFactor(m.opts.DriftFactor),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, contextError(ctx, key)
		}

		// redsync reports contention as ErrFailed or "lock already taken".
		msg := err.Error()
		if errors.Is(err, redsync.ErrFailed) ||
			strings.Contains(msg, "lock already taken") ||
			strings.Contains(msg, "failed to acquire lock") {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}

		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}

	m.logger.Debug("redis lock acquired", zap.String("lock_key", key))

	return &redisHandle{mutex: mutex, logger: m.logger}, nil
}

type redisHandle struct {
	mutex    *redsync.Mutex
	logger   *zap.Logger
	released atomic.Bool
}

func (h *redisHandle) Unlock(ctx context.Context) error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}

	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		if errors.Is(err, redsync.ErrLockAlreadyExpired) || strings.Contains(err.Error(), "already expired") {
			h.logger.Warn("redis lock expired before release", zap.String("lock_key", h.mutex.Name()))
			return ErrLockNotHeld
		}
		h.logger.Error("failed to release redis lock", zap.String("lock_key", h.mutex.Name()), zap.Error(err))
		return fmt.Errorf("release %s: %w", h.mutex.Name(), err)
	}

	if !ok {
		h.logger.Warn("redis lock was not held or already expired", zap.String("lock_key", h.mutex.Name()))
		return ErrLockNotHeld
	}

	return nil
}

var _ Manager = (*RedisManager)(nil)
