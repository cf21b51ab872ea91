package distlock

import (
	"context"
	"sync"
)

// localRegistry tracks held keys within this process. Sufficient when the
// engine runs as a single instance.
type localRegistry struct {
	mu   sync.Mutex
	held map[string]bool
}

func newLocalRegistry() *localRegistry {
	return &localRegistry{held: make(map[string]bool)}
}

func (r *localRegistry) forKey(key string) *localLock {
	return &localLock{registry: r, key: key}
}

type localLock struct {
	registry *localRegistry
	key      string
	owned    bool
}

func (l *localLock) TryAcquire(_ context.Context) (bool, error) {
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if l.registry.held[l.key] {
		return false, nil
	}
	l.registry.held[l.key] = true
	l.owned = true
	return true, nil
}

func (l *localLock) Release(_ context.Context) error {
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if l.owned {
		delete(l.registry.held, l.key)
		l.owned = false
	}
	return nil
}
