// Package guard is the allocation guard: the serialization point every
// mutating ledger operation passes through so that no two writers act on the
// same BudgetItem with stale numbers.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/backoff"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/platform/lock"
)

// Config bounds how long and how often the guard tries to enter a critical
// section.
type Config struct {
	// Timeout bounds one acquisition attempt of the whole key set. A shorter
	// caller deadline wins.
	Timeout time.Duration
	// MaxAttempts is the number of acquisition attempts before
	// AllocationLockTimeout is surfaced. A unit that fails with
	// ConcurrentModification is also retried within this budget.
	MaxAttempts int
	// RetryBase is the base delay of the exponential backoff between attempts.
	RetryBase time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		RetryBase:   25 * time.Millisecond,
	}
}

// Guard serialises ledger mutations per BudgetItem, and per Budget where the
// parent's capacity or status is involved.
type Guard struct {
	locks  lock.Manager
	cfg    Config
	logger *zap.Logger
}

func New(locks lock.Manager, cfg Config, logger *zap.Logger) *Guard {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Guard{locks: locks, cfg: cfg, logger: logger}
}

func ItemKey(itemID string) string { return "ledger:item:" + itemID }

func BudgetKey(budgetID string) string { return "ledger:budget:" + budgetID }

// Item runs fn inside the critical section of one BudgetItem.
func (g *Guard) Item(ctx context.Context, itemID string, fn func(context.Context) error) error {
	return g.run(ctx, []string{ItemKey(itemID)}, fn)
}

// Budget runs fn inside the critical section of a Budget and, after it, of
// each listed item. Keys are taken budget first, then items in id order, so
// two callers can never wait on each other in a cycle.
func (g *Guard) Budget(ctx context.Context, budgetID string, itemIDs []string, fn func(context.Context) error) error {
	return g.run(ctx, Keys(budgetID, itemIDs...), fn)
}

// Keys returns the acquisition order for a budget and some of its items.
func Keys(budgetID string, itemIDs ...string) []string {
	ids := append([]string(nil), itemIDs...)
	sort.Strings(ids)

	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, BudgetKey(budgetID))
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		keys = append(keys, ItemKey(id))
	}
	return keys
}

func (g *Guard) run(ctx context.Context, keys []string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff.ExponentialWithJitter(g.cfg.RetryBase, attempt-1)
			if err := backoff.SleepWithContext(ctx, delay); err != nil {
				return err
			}
		}

		handles, err := g.acquireAll(ctx, keys)
		if err != nil {
			if !errors.Is(err, lock.ErrLockTimeout) {
				return err
			}

			g.logger.Warn("allocation lock busy",
				zap.Strings("keys", keys), zap.Int("attempt", attempt+1), zap.Error(err))
			lastErr = err
			continue
		}

		err = g.execute(ctx, keys, handles, fn)
		if errors.Is(err, domain.ErrConcurrentModification) {
			g.logger.Warn("allocation unit conflicted, retrying",
				zap.Strings("keys", keys), zap.Int("attempt", attempt+1), zap.Error(err))
			lastErr = err
			continue
		}

		return err
	}

	if errors.Is(lastErr, domain.ErrConcurrentModification) {
		return lastErr
	}

	return &domain.DomainError{
		Kind:    domain.ErrAllocationLockTimeout,
		Field:   keys[len(keys)-1],
		Message: fmt.Sprintf("could not enter critical section after %d attempts", g.cfg.MaxAttempts),
	}
}

// acquireAll takes every key in order under one attempt deadline. On
// failure whatever was taken is released.
func (g *Guard) acquireAll(ctx context.Context, keys []string) ([]lock.Handle, error) {
	actx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	handles := make([]lock.Handle, 0, len(keys))
	for _, key := range keys {
		h, err := g.locks.Acquire(actx, key)
		if err != nil {
			g.release(ctx, keys, handles)
			if ctx.Err() != nil {
				// The caller gave up, not the attempt budget.
				return nil, fmt.Errorf("enter critical section: %w", ctx.Err())
			}
			return nil, err
		}
		handles = append(handles, h)
	}

	g.logger.Debug("allocation lock acquired", zap.Strings("keys", keys))

	return handles, nil
}

// execute runs fn detached from caller cancellation: once the critical
// section is entered it commits or rolls back on its own terms.
func (g *Guard) execute(ctx context.Context, keys []string, handles []lock.Handle, fn func(context.Context) error) error {
	defer g.release(ctx, keys, handles)

	return fn(context.WithoutCancel(ctx))
}

func (g *Guard) release(ctx context.Context, keys []string, handles []lock.Handle) {
	rctx := context.WithoutCancel(ctx)
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].Unlock(rctx); err != nil {
			g.logger.Error("failed to release allocation lock", zap.String("lock_key", keys[i]), zap.Error(err))
		}
	}
}
