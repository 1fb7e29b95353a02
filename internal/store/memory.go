package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rezolv/rezolv/internal/alias"
)

// MemoryRepository is an in-memory implementation of alias.Repository.
// It backs unit tests and local development without Postgres.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*alias.Record
	byCode  map[string]uuid.UUID
	deleted map[uuid.UUID]struct{}
	clicks  map[string]int64
	reads   atomic.Int64
}

// NewMemoryRepository creates an empty in-memory alias repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[uuid.UUID]*alias.Record),
		byCode:  make(map[string]uuid.UUID),
		deleted: make(map[uuid.UUID]struct{}),
		clicks:  make(map[string]int64),
	}
}

// Reads returns how many GetByCode calls have hit this repository.
func (m *MemoryRepository) Reads() int64 {
	return m.reads.Load()
}

// RecordClicks registers click volume for a code, for TopCodesByClicks.
func (m *MemoryRepository) RecordClicks(code string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clicks[code] += n
}

func (m *MemoryRepository) Create(_ context.Context, rec *alias.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byCode[rec.Code]; ok {
		if _, gone := m.deleted[id]; !gone {
			return alias.ErrCodeTaken
		}
	}

	clone := *rec
	m.byID[rec.ID] = &clone
	m.byCode[rec.Code] = rec.ID

	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*alias.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, alias.ErrNotFound
	}

	if _, gone := m.deleted[id]; gone {
		return nil, alias.ErrNotFound
	}

	clone := *rec

	return &clone, nil
}

func (m *MemoryRepository) GetByCode(_ context.Context, code string) (*alias.Record, error) {
	m.reads.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, alias.ErrNotFound
	}

	if _, gone := m.deleted[id]; gone {
		return nil, alias.ErrNotFound
	}

	clone := *m.byID[id]

	return &clone, nil
}

func (m *MemoryRepository) Update(_ context.Context, rec *alias.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[rec.ID]; !ok {
		return alias.ErrNotFound
	}

	if _, gone := m.deleted[rec.ID]; gone {
		return alias.ErrNotFound
	}

	clone := *rec
	m.byID[rec.ID] = &clone

	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return alias.ErrNotFound
	}

	if _, gone := m.deleted[id]; gone {
		return alias.ErrNotFound
	}

	m.deleted[id] = struct{}{}

	return nil
}

func (m *MemoryRepository) Exists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return false, nil
	}

	_, gone := m.deleted[id]

	return !gone, nil
}

func (m *MemoryRepository) List(
	_ context.Context, ownerID string, filter alias.ListFilter,
) (*alias.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*alias.Record

	for id, rec := range m.byID {
		if _, gone := m.deleted[id]; gone {
			continue
		}

		if rec.OwnerID != ownerID {
			continue
		}

		if !matchesFilter(rec, filter) {
			continue
		}

		clone := *rec
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page, limit := normalizePage(filter.Page, filter.Limit)
	total := int64(len(matched))

	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))

	return &alias.Page{
		Items: matched[start:end],
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}

func (m *MemoryRepository) TopCodesByClicks(_ context.Context, n int, _ time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type entry struct {
		code  string
		count int64
	}

	ranked := make([]entry, 0, len(m.clicks))
	for code, count := range m.clicks {
		ranked = append(ranked, entry{code: code, count: count})
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})

	n = min(n, len(ranked))

	codes := make([]string, 0, n)
	for _, e := range ranked[:n] {
		codes = append(codes, e.code)
	}

	return codes, nil
}

func matchesFilter(rec *alias.Record, filter alias.ListFilter) bool {
	if filter.ActiveOnly && !rec.Active {
		return false
	}

	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(rec.Code), needle) &&
			!strings.Contains(strings.ToLower(rec.Title), needle) &&
			!strings.Contains(strings.ToLower(rec.Destination), needle) {
			return false
		}
	}

	for _, want := range filter.Tags {
		found := false

		for _, tag := range rec.Tags {
			if tag == want {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}

	if limit < 1 || limit > 100 {
		limit = 20
	}

	return page, limit
}

// Compile-time check.
var _ alias.Repository = (*MemoryRepository)(nil)
