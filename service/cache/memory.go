package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sitepulse/engine/internal/clock"
)

// MemoryConfig bounds the in-memory cache.
type MemoryConfig struct {
	// Capacity caps the number of entries; 0 means unbounded.
	Capacity int
	// DefaultTTL applies when Set receives a non-positive ttl.
	DefaultTTL time.Duration
}

// entry is a single cached value. lastAccessed drives LRU ordering; entries
// that were never read keep their insertion position, so the oldest insert
// loses ties.
type entry struct {
	key          string
	value        interface{}
	createdAt    time.Time
	ttl          time.Duration
	lastAccessed time.Time
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && e.createdAt.Add(e.ttl).Before(now)
}

// Memory is a mutex-guarded TTL+LRU cache. The recency list keeps the most
// recently accessed entry at the front; eviction removes the back.
type Memory struct {
	config  MemoryConfig
	mu      sync.Mutex
	entries map[string]*list.Element
	recency *list.List
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an in-memory cache.
func NewMemory(config MemoryConfig) *Memory {
	return &Memory{
		config:  config,
		entries: make(map[string]*list.Element),
		recency: list.New(),
	}
}

// Get returns a fresh value; an expired entry is removed and reported as a
// miss. A hit refreshes the entry's recency.
func (m *Memory) Get(_ context.Context, key string) (interface{}, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	element, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	cached := element.Value.(*entry)
	now := clock.Now()
	if cached.expired(now) {
		m.removeElement(element)
		return nil, false, nil
	}
	cached.lastAccessed = now
	m.recency.MoveToFront(element)
	return cached.value, true, nil
}

// Set stores value under key. When the cache is at capacity and key is new,
// the least-recently-accessed entry is evicted first.
func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}
	now := clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if element, ok := m.entries[key]; ok {
		cached := element.Value.(*entry)
		cached.value = value
		cached.createdAt = now
		cached.ttl = ttl
		cached.lastAccessed = now
		m.recency.MoveToFront(element)
		return nil
	}
	if m.config.Capacity > 0 && m.recency.Len() >= m.config.Capacity {
		if tail := m.recency.Back(); tail != nil {
			m.removeElement(tail)
		}
	}
	m.entries[key] = m.recency.PushFront(&entry{
		key:          key,
		value:        value,
		createdAt:    now,
		ttl:          ttl,
		lastAccessed: now,
	})
	return nil
}

// Invalidate removes a single entry.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if element, ok := m.entries[key]; ok {
		m.removeElement(element)
	}
	return nil
}

// InvalidateNamespace removes all entries sharing the prefix.
func (m *Memory) InvalidateNamespace(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, element := range m.entries {
		if strings.HasPrefix(key, prefix) {
			m.removeElement(element)
		}
	}
	return nil
}

// Len returns the number of live entries, expired ones included until read
// or evicted.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recency.Len()
}

func (m *Memory) removeElement(element *list.Element) {
	cached := element.Value.(*entry)
	m.recency.Remove(element)
	delete(m.entries, cached.key)
}
