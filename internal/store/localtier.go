package store

import (
	"context"
	"sync"
	"time"

	"github.com/rezolv/rezolv/internal/alias"
	"github.com/rezolv/rezolv/internal/cache"
)

type localEntry struct {
	rec       alias.Record
	expiresAt time.Time
}

// LocalTier is the in-process cache tier. Entries expire by TTL and are
// swept lazily on writes.
type LocalTier struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	writes  int
}

// sweepEvery controls how many writes pass between expiry sweeps.
const sweepEvery = 256

// NewLocalTier creates an empty in-process cache tier.
func NewLocalTier() *LocalTier {
	return &LocalTier{entries: make(map[string]localEntry)}
}

func (t *LocalTier) Get(_ context.Context, code string) (*alias.Record, error) {
	t.mu.RLock()
	entry, ok := t.entries[code]
	t.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, cache.ErrMiss
	}

	clone := entry.rec

	return &clone, nil
}

func (t *LocalTier) Set(_ context.Context, code string, rec *alias.Record, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[code] = localEntry{rec: *rec, expiresAt: time.Now().Add(ttl)}

	t.writes++
	if t.writes%sweepEvery == 0 {
		t.sweepLocked()
	}

	return nil
}

func (t *LocalTier) Delete(_ context.Context, code string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, code)

	return nil
}

func (t *LocalTier) sweepLocked() {
	now := time.Now()

	for code, entry := range t.entries {
		if now.After(entry.expiresAt) {
			delete(t.entries, code)
		}
	}
}

// Compile-time check.
var _ cache.Tier = (*LocalTier)(nil)
