package lock

import (
	"context"
	"sync"
	"sync/atomic"
)

// LocalManager is an in-process Manager. Each key maps to a one-slot
// channel; entries are dropped once nobody holds or waits for them.
type LocalManager struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	slot chan struct{}
	refs int
}

func NewLocalManager() *LocalManager {
	return &LocalManager{locks: make(map[string]*localEntry)}
}

func (m *LocalManager) Acquire(ctx context.Context, key string) (Handle, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	e := m.ref(key)

	select {
	case e.slot <- struct{}{}:
		return &localHandle{m: m, key: key, e: e}, nil
	case <-ctx.Done():
		m.unref(key, e)
		return nil, contextError(ctx, key)
	}
}

func (m *LocalManager) ref(key string) *localEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[key]
	if !ok {
		e = &localEntry{slot: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++

	return e
}

func (m *LocalManager) unref(key string, e *localEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (m *LocalManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

type localHandle struct {
	m        *LocalManager
	key      string
	e        *localEntry
	released atomic.Bool
}

func (h *localHandle) Unlock(_ context.Context) error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}

	<-h.e.slot
	h.m.unref(h.key, h.e)

	return nil
}

var _ Manager = (*LocalManager)(nil)
