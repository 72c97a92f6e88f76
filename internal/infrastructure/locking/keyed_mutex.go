// Package locking provides in-process per-key mutual exclusion.
package locking

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

type keyLock struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex serializes work per key. Entries are reference counted and
// removed once no goroutine holds or waits for the key, so the map stays
// proportional to the number of active keys.
type KeyedMutex struct {
	locks *xsync.MapOf[string, *keyLock]
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: xsync.NewMapOf[string, *keyLock]()}
}

// Lock blocks until key is acquired or ctx is done. The returned function
// releases the key and must be called exactly once.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	l, _ := m.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			old = &keyLock{sem: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			m.release(key)
		}, nil
	case <-ctx.Done():
		m.release(key)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) release(key string) {
	m.locks.Compute(key, func(old *keyLock, loaded bool) (*keyLock, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs == 0
	})
}

// Len returns the number of keys currently held or awaited.
func (m *KeyedMutex) Len() int {
	return m.locks.Size()
}
