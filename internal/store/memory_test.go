package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rezolv/rezolv/internal/alias"
	"github.com/rezolv/rezolv/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(ownerID, code string) *alias.Record {
	now := time.Now()

	return &alias.Record{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Destination: "https://example.com/" + code,
		Code:        code,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemoryRepository(t *testing.T) {
	t.Run("create then fetch by id and code", func(t *testing.T) {
		repo := store.NewMemoryRepository()
		rec := record("owner-1", "abc1234")

		require.NoError(t, repo.Create(context.Background(), rec))

		byID, err := repo.GetByID(context.Background(), rec.ID)

		require.NoError(t, err)
		assert.Equal(t, rec.Code, byID.Code)

		byCode, err := repo.GetByCode(context.Background(), rec.Code)

		require.NoError(t, err)
		assert.Equal(t, rec.ID, byCode.ID)
	})

	t.Run("duplicate code is rejected", func(t *testing.T) {
		repo := store.NewMemoryRepository()

		require.NoError(t, repo.Create(context.Background(), record("owner-1", "abc1234")))
		assert.ErrorIs(t, repo.Create(context.Background(), record("owner-2", "abc1234")), alias.ErrCodeTaken)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		repo := store.NewMemoryRepository()
		rec := record("owner-1", "abc1234")

		require.NoError(t, repo.Create(context.Background(), rec))

		fetched, err := repo.GetByID(context.Background(), rec.ID)

		require.NoError(t, err)

		fetched.Title = "mutated"

		again, err := repo.GetByID(context.Background(), rec.ID)

		require.NoError(t, err)
		assert.Empty(t, again.Title)
	})

	t.Run("update replaces the stored record", func(t *testing.T) {
		repo := store.NewMemoryRepository()
		rec := record("owner-1", "abc1234")

		require.NoError(t, repo.Create(context.Background(), rec))

		rec.Title = "Updated"

		require.NoError(t, repo.Update(context.Background(), rec))

		fetched, err := repo.GetByID(context.Background(), rec.ID)

		require.NoError(t, err)
		assert.Equal(t, "Updated", fetched.Title)
	})

	t.Run("update of an unknown record", func(t *testing.T) {
		repo := store.NewMemoryRepository()

		assert.ErrorIs(t, repo.Update(context.Background(), record("owner-1", "abc1234")), alias.ErrNotFound)
	})

	t.Run("delete hides the record everywhere", func(t *testing.T) {
		repo := store.NewMemoryRepository()
		rec := record("owner-1", "abc1234")

		require.NoError(t, repo.Create(context.Background(), rec))
		require.NoError(t, repo.Delete(context.Background(), rec.ID))

		_, err := repo.GetByID(context.Background(), rec.ID)

		assert.ErrorIs(t, err, alias.ErrNotFound)

		_, err = repo.GetByCode(context.Background(), rec.Code)

		assert.ErrorIs(t, err, alias.ErrNotFound)

		exists, err := repo.Exists(context.Background(), rec.Code)

		require.NoError(t, err)
		assert.False(t, exists)

		assert.ErrorIs(t, repo.Delete(context.Background(), rec.ID), alias.ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		repo := store.NewMemoryRepository()

		require.NoError(t, repo.Create(context.Background(), record("owner-1", "abc1234")))

		exists, err := repo.Exists(context.Background(), "abc1234")

		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.Exists(context.Background(), "zzz9999")

		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("reads counts GetByCode calls", func(t *testing.T) {
		repo := store.NewMemoryRepository()

		require.NoError(t, repo.Create(context.Background(), record("owner-1", "abc1234")))
		require.Zero(t, repo.Reads())

		_, _ = repo.GetByCode(context.Background(), "abc1234")
		_, _ = repo.GetByCode(context.Background(), "missing")

		assert.Equal(t, int64(2), repo.Reads())
	})
}

func TestMemoryRepositoryList(t *testing.T) {
	seed := func(t *testing.T) *store.MemoryRepository {
		t.Helper()

		repo := store.NewMemoryRepository()

		docs := record("owner-1", "docs001")
		docs.Title = "Documentation"
		docs.Tags = []string{"docs", "public"}

		blog := record("owner-1", "blog001")
		blog.Title = "Blog"
		blog.Tags = []string{"public"}
		blog.Active = false

		other := record("owner-2", "misc001")

		for _, rec := range []*alias.Record{docs, blog, other} {
			require.NoError(t, repo.Create(context.Background(), rec))
		}

		return repo
	}

	t.Run("owner scope", func(t *testing.T) {
		page, err := seed(t).List(context.Background(), "owner-1", alias.ListFilter{})

		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("active only", func(t *testing.T) {
		page, err := seed(t).List(context.Background(), "owner-1", alias.ListFilter{ActiveOnly: true})

		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "docs001", page.Items[0].Code)
	})

	t.Run("search matches code, title, and destination", func(t *testing.T) {
		repo := seed(t)

		for _, search := range []string{"DOCS001", "documentation", "example.com/docs001"} {
			page, err := repo.List(context.Background(), "owner-1", alias.ListFilter{Search: search})

			require.NoError(t, err)
			assert.Equal(t, int64(1), page.Total, search)
		}
	})

	t.Run("tag filter requires every tag", func(t *testing.T) {
		repo := seed(t)

		page, err := repo.List(context.Background(), "owner-1", alias.ListFilter{Tags: []string{"public"}})

		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)

		page, err = repo.List(context.Background(), "owner-1", alias.ListFilter{Tags: []string{"public", "docs"}})

		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
	})

	t.Run("pagination clamps page and limit", func(t *testing.T) {
		repo := store.NewMemoryRepository()

		for i := range 25 {
			rec := record("owner-1", alias.EncodeBase62(uint64(i), 7))
			rec.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)

			require.NoError(t, repo.Create(context.Background(), rec))
		}

		page, err := repo.List(context.Background(), "owner-1", alias.ListFilter{Page: 0, Limit: -5})

		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 20, page.Limit)
		assert.Len(t, page.Items, 20)
		assert.Equal(t, int64(25), page.Total)

		page, err = repo.List(context.Background(), "owner-1", alias.ListFilter{Page: 2})

		require.NoError(t, err)
		assert.Len(t, page.Items, 5)

		page, err = repo.List(context.Background(), "owner-1", alias.ListFilter{Page: 99})

		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("newest first", func(t *testing.T) {
		repo := store.NewMemoryRepository()

		older := record("owner-1", "older01")
		older.CreatedAt = time.Now().Add(-time.Hour)

		newer := record("owner-1", "newer01")

		require.NoError(t, repo.Create(context.Background(), older))
		require.NoError(t, repo.Create(context.Background(), newer))

		page, err := repo.List(context.Background(), "owner-1", alias.ListFilter{})

		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "newer01", page.Items[0].Code)
	})
}

func TestMemoryRepositoryTopCodesByClicks(t *testing.T) {
	repo := store.NewMemoryRepository()

	repo.RecordClicks("hot0001", 100)
	repo.RecordClicks("warm001", 10)
	repo.RecordClicks("cold001", 1)

	codes, err := repo.TopCodesByClicks(context.Background(), 2, time.Now().Add(-24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, []string{"hot0001", "warm001"}, codes)

	codes, err = repo.TopCodesByClicks(context.Background(), 10, time.Now().Add(-24*time.Hour))

	require.NoError(t, err)
	assert.Len(t, codes, 3)
}
