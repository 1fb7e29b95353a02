package store

import (
	"context"
	"sync"
	"time"

	"github.com/rezolv/rezolv/internal/ratelimit"
)

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is an in-memory implementation of
// ratelimit.CounterStore for tests and single-instance runs.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*counterEntry
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]*counterEntry)}
}

func (s *MemoryCounterStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	entry, ok := s.counters[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &counterEntry{expiresAt: now.Add(ttl)}
		s.counters[key] = entry
	}

	entry.count++

	// Prune alongside writes so abandoned windows do not accumulate.
	for k, e := range s.counters {
		if now.After(e.expiresAt) {
			delete(s.counters, k)
		}
	}

	return entry.count, nil
}

// Compile-time check.
var _ ratelimit.CounterStore = (*MemoryCounterStore)(nil)
