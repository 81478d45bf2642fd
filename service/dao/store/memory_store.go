package store

import (
	"context"
	"sync"
	"time"

	"github.com/sitepulse/engine/internal/clock"
	"github.com/sitepulse/engine/service/dao"
)

// MemoryStore is a generic in-memory implementation of dao.Service keeping
// entities of type *T mapped by a comparable key K. The key is obtained from
// the supplied keySelector function.
//
// A retention window may be configured; Sweep then drops records older than
// the window, which is how consumed task results age out of the engine.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*record[T]
	keySelector func(*T) K
	retention   time.Duration
}

type record[T any] struct {
	value   *T
	savedAt time.Time
}

// Option customises a MemoryStore.
type Option[K comparable, T any] func(*MemoryStore[K, T])

// WithRetention drops records older than d on Sweep. Zero keeps forever.
func WithRetention[K comparable, T any](d time.Duration) Option[K, T] {
	return func(s *MemoryStore[K, T]) {
		s.retention = d
	}
}

// NewMemoryStore creates a new MemoryStore. keySelector extracts the entity
// key (usually the ID field) from a value.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K, options ...Option[K, T]) *MemoryStore[K, T] {
	ret := &MemoryStore[K, T]{
		records:     make(map[K]*record[T]),
		keySelector: keySelector,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = &record[T]{value: v, savedAt: clock.Now()}
	return nil
}

// Load returns a record by key, or nil when absent.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return rec.value, nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// List returns all stored records.
func (s *MemoryStore[K, T]) List(_ context.Context, _ ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.value)
	}
	return out, nil
}

// Sweep removes records older than the retention window and reports how many
// were dropped. No-op without a retention window.
func (s *MemoryStore[K, T]) Sweep() int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := clock.Now().Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.records {
		if rec.savedAt.Before(cutoff) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored records.
func (s *MemoryStore[K, T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
