// Package lock serializes writers on a string key, either inside one process
// or across replicas through Redis.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout is returned when the context expires before the key is free.
var ErrLockTimeout = errors.New("lock: timed out waiting for key")

// Release frees a held key. Calling it more than once is a no-op.
type Release func()

// Locker hands out exclusive ownership of a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are reference counted so the
// map does not grow with every key ever seen.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

// NewKeyedMutex constructs an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

// Acquire blocks until key is free or ctx is done.
func (m *KeyedMutex) Acquire(ctx context.Context, key string) (Release, error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &keyedEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, entry)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			m.unref(key, entry)
		})
	}, nil
}

// Len reports how many keys are currently tracked.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *KeyedMutex) unref(key string, entry *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, key)
	}
}
