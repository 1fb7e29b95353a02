package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rezolv/rezolv/internal/alias"
	"github.com/rezolv/rezolv/internal/cache"
	"github.com/rezolv/rezolv/internal/clicks"
	"github.com/rezolv/rezolv/internal/service"
	"github.com/rezolv/rezolv/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc    *service.Service
	repo   *store.MemoryRepository
	events *eventSink
}

type eventSink struct {
	mu     sync.Mutex
	events []*clicks.Event
}

func (s *eventSink) publish(event *clicks.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	return nil
}

func (s *eventSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.events)
}

func (s *eventSink) last() *clicks.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return nil
	}

	return s.events[len(s.events)-1]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := store.NewMemoryRepository()
	c := cache.New(store.NewLocalTier(), store.NewLocalTier(), repo, time.Minute, time.Second, zap.NewNop())

	sink := &eventSink{}
	pipeline := clicks.NewPipeline(sink.publish, uuid.NewString, 64, zap.NewNop())

	require.NoError(t, pipeline.Start(context.Background()))
	t.Cleanup(func() { _ = pipeline.Shutdown() })

	return &fixture{
		svc:    service.New(repo, c, pipeline, alias.DefaultCodeLength, zap.NewNop()),
		repo:   repo,
		events: sink,
	}
}

func (f *fixture) mustCreate(t *testing.T, ownerID string, in service.CreateInput) *alias.Record {
	t.Helper()

	rec, err := f.svc.Create(context.Background(), ownerID, in)

	require.NoError(t, err)

	return rec
}

var noMeta = clicks.RequestMeta{ClientAddress: "203.0.113.1", UserAgent: "test"}

func TestServiceCreate(t *testing.T) {
	t.Run("creates an active alias with a generated code", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/docs",
			Title:       "Docs",
			Tags:        []string{"docs", "public"},
		})

		assert.NotEqual(t, uuid.Nil, rec.ID)
		assert.Equal(t, "owner-1", rec.OwnerID)
		assert.Len(t, rec.Code, alias.DefaultCodeLength)
		assert.True(t, rec.Active)
		assert.Equal(t, []string{"docs", "public"}, rec.Tags)

		stored, err := f.repo.GetByCode(context.Background(), rec.Code)

		require.NoError(t, err)
		assert.Equal(t, rec.ID, stored.ID)
	})

	t.Run("rejects invalid destinations", func(t *testing.T) {
		f := newFixture(t)

		for _, destination := range []string{
			"",
			"ftp://example.com/file",
			"https:///no-host",
			"javascript:alert(1)",
		} {
			_, err := f.svc.Create(context.Background(), "owner-1", service.CreateInput{
				Destination: destination,
			})

			var verr *alias.ValidationError

			assert.ErrorAs(t, err, &verr, destination)
		}
	})

	t.Run("rejects a past expiry", func(t *testing.T) {
		f := newFixture(t)

		past := time.Now().Add(-time.Hour)

		_, err := f.svc.Create(context.Background(), "owner-1", service.CreateInput{
			Destination: "https://example.com/",
			ExpiresAt:   &past,
		})

		var verr *alias.ValidationError

		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "expiresAt", verr.Field)
	})

	t.Run("accepts a valid custom code", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/",
			CustomCode:  "promo2026",
		})

		assert.Equal(t, "promo2026", rec.Code)
	})

	t.Run("rejects malformed custom codes", func(t *testing.T) {
		f := newFixture(t)

		for _, code := range []string{"ab", "has space", "has-dash", "über"} {
			_, err := f.svc.Create(context.Background(), "owner-1", service.CreateInput{
				Destination: "https://example.com/",
				CustomCode:  code,
			})

			var verr *alias.ValidationError

			assert.ErrorAs(t, err, &verr, code)
		}
	})

	t.Run("custom code conflicts surface as taken", func(t *testing.T) {
		f := newFixture(t)

		f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/a",
			CustomCode:  "launch26",
		})

		_, err := f.svc.Create(context.Background(), "owner-2", service.CreateInput{
			Destination: "https://example.com/b",
			CustomCode:  "launch26",
		})

		assert.ErrorIs(t, err, alias.ErrCodeTaken)
	})

	t.Run("generated codes avoid existing ones", func(t *testing.T) {
		f := newFixture(t)

		first := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/page",
		})
		second := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/page",
		})

		assert.NotEqual(t, first.Code, second.Code)
	})

	t.Run("created alias resolves without touching the store again", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/warm",
		})

		reads := f.repo.Reads()

		resolution, err := f.svc.Resolve(context.Background(), rec.Code, noMeta)

		require.NoError(t, err)
		assert.Equal(t, clicks.OutcomeFound, resolution.Outcome)
		assert.Equal(t, reads, f.repo.Reads())
	})
}

func TestServiceUpdate(t *testing.T) {
	t.Run("applies partial updates", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/",
			Title:       "Before",
		})

		title := "After"
		inactive := false

		updated, err := f.svc.Update(context.Background(), "owner-1", rec.ID, service.UpdateInput{
			Title:  &title,
			Active: &inactive,
		})

		require.NoError(t, err)
		assert.Equal(t, "After", updated.Title)
		assert.False(t, updated.Active)
		assert.Equal(t, rec.Code, updated.Code)
	})

	t.Run("only the owner may update", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/",
		})

		title := "Hijack"

		_, err := f.svc.Update(context.Background(), "owner-2", rec.ID, service.UpdateInput{
			Title: &title,
		})

		assert.ErrorIs(t, err, alias.ErrForbidden)
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Update(context.Background(), "owner-1", uuid.New(), service.UpdateInput{})

		assert.ErrorIs(t, err, alias.ErrNotFound)
	})

	t.Run("deactivation takes effect on the next resolution", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/",
		})

		resolution, err := f.svc.Resolve(context.Background(), rec.Code, noMeta)

		require.NoError(t, err)
		require.Equal(t, clicks.OutcomeFound, resolution.Outcome)

		inactive := false

		_, err = f.svc.Update(context.Background(), "owner-1", rec.ID, service.UpdateInput{
			Active: &inactive,
		})

		require.NoError(t, err)

		resolution, err = f.svc.Resolve(context.Background(), rec.Code, noMeta)

		require.NoError(t, err)
		assert.Equal(t, clicks.OutcomeNotFound, resolution.Outcome)
	})
}

func TestServiceDelete(t *testing.T) {
	t.Run("deleted alias stops resolving", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/",
		})

		require.NoError(t, f.svc.Delete(context.Background(), "owner-1", rec.ID))

		resolution, err := f.svc.Resolve(context.Background(), rec.Code, noMeta)

		require.NoError(t, err)
		assert.Equal(t, clicks.OutcomeNotFound, resolution.Outcome)
	})

	t.Run("only the owner may delete", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/",
		})

		assert.ErrorIs(t, f.svc.Delete(context.Background(), "owner-2", rec.ID), alias.ErrForbidden)
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture(t)

		assert.ErrorIs(t, f.svc.Delete(context.Background(), "owner-1", uuid.New()), alias.ErrNotFound)
	})
}

func TestServiceList(t *testing.T) {
	f := newFixture(t)

	for _, in := range []service.CreateInput{
		{Destination: "https://example.com/a", Title: "Alpha", Tags: []string{"work"}},
		{Destination: "https://example.com/b", Title: "Beta", Tags: []string{"home"}},
	} {
		f.mustCreate(t, "owner-1", in)
	}

	f.mustCreate(t, "owner-2", service.CreateInput{Destination: "https://example.com/c"})

	t.Run("scoped to the owner", func(t *testing.T) {
		page, err := f.svc.List(context.Background(), "owner-1", alias.ListFilter{})

		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("filters by tag", func(t *testing.T) {
		page, err := f.svc.List(context.Background(), "owner-1", alias.ListFilter{Tags: []string{"work"}})

		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Alpha", page.Items[0].Title)
	})
}

func TestServiceResolve(t *testing.T) {
	t.Run("found emits a click event", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/target",
		})

		resolution, err := f.svc.Resolve(context.Background(), rec.Code, noMeta)

		require.NoError(t, err)
		assert.Equal(t, clicks.OutcomeFound, resolution.Outcome)
		assert.Equal(t, "https://example.com/target", resolution.Destination)

		assert.Eventually(t, func() bool { return f.events.count() == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, rec.ID, f.events.last().AliasID)
		assert.Equal(t, clicks.OutcomeFound, f.events.last().Outcome)
	})

	t.Run("unknown code resolves to not found without an event", func(t *testing.T) {
		f := newFixture(t)

		resolution, err := f.svc.Resolve(context.Background(), "nope123", noMeta)

		require.NoError(t, err)
		assert.Equal(t, clicks.OutcomeNotFound, resolution.Outcome)
		assert.Empty(t, resolution.Destination)

		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, f.events.count())
	})

	t.Run("expiry wins over active", func(t *testing.T) {
		f := newFixture(t)

		soon := time.Now().Add(30 * time.Millisecond)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/",
			ExpiresAt:   &soon,
		})

		time.Sleep(50 * time.Millisecond)

		resolution, err := f.svc.Resolve(context.Background(), rec.Code, noMeta)

		require.NoError(t, err)
		assert.Equal(t, clicks.OutcomeExpired, resolution.Outcome)
		assert.Empty(t, resolution.Destination)

		assert.Eventually(t, func() bool { return f.events.count() == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, clicks.OutcomeExpired, f.events.last().Outcome)
	})

	t.Run("inactive resolves to not found with an event", func(t *testing.T) {
		f := newFixture(t)

		rec := f.mustCreate(t, "owner-1", service.CreateInput{
			Destination: "https://example.com/",
		})

		inactive := false

		_, err := f.svc.Update(context.Background(), "owner-1", rec.ID, service.UpdateInput{
			Active: &inactive,
		})

		require.NoError(t, err)

		resolution, err := f.svc.Resolve(context.Background(), rec.Code, noMeta)

		require.NoError(t, err)
		assert.Equal(t, clicks.OutcomeNotFound, resolution.Outcome)
		assert.Eventually(t, func() bool { return f.events.count() == 1 }, time.Second, 5*time.Millisecond)
	})
}
