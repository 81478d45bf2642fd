package cache

import (
	"context"
	"sync"
)

// Manager keeps named caches so that components share one cache per concern
// (analysis results, fetched pages) without threading instances around.
type Manager struct {
	mu     sync.RWMutex
	caches map[string]Cache
}

// NewManager creates an empty cache manager.
func NewManager() *Manager {
	return &Manager{caches: make(map[string]Cache)}
}

// Register binds a cache under name, replacing any previous binding.
func (m *Manager) Register(name string, c Cache) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// Lookup returns the cache registered under name, or nil.
func (m *Manager) Lookup(name string) Cache {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caches[name]
}

// Names returns the registered cache names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []string
	for name := range m.caches {
		result = append(result, name)
	}
	return result
}

// InvalidateNamespace drops the namespace from every registered cache, so a
// component's entries disappear regardless of which tier holds them.
func (m *Manager) InvalidateNamespace(ctx context.Context, prefix string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.caches {
		if err := c.InvalidateNamespace(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}
