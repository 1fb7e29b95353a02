package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rezolv/rezolv/internal/alias"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by a Tier when it holds no entry for the code.
var ErrMiss = errors.New("cache miss")

// Tier is one cache layer in the resolution path. Implementations must be
// safe for concurrent use.
type Tier interface {
	Get(ctx context.Context, code string) (*alias.Record, error)
	Set(ctx context.Context, code string, rec *alias.Record, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
}

// DefaultTierTimeout bounds how long a single tier lookup may take before
// the resolve path falls through to the next tier.
const DefaultTierTimeout = 150 * time.Millisecond

// Cache is the cache-aside resolution path: local tier, then shared tier,
// then the durable repository. Concurrent misses for the same code are
// coalesced into a single repository fetch.
type Cache struct {
	local       Tier
	shared      Tier
	repo        alias.Repository
	ttl         time.Duration
	tierTimeout time.Duration
	group       singleflight.Group
	logger      *zap.Logger
}

// New creates a resolution cache over the given tiers and repository.
func New(local, shared Tier, repo alias.Repository, ttl, tierTimeout time.Duration, logger *zap.Logger) *Cache {
	if tierTimeout <= 0 {
		tierTimeout = DefaultTierTimeout
	}

	return &Cache{
		local:       local,
		shared:      shared,
		repo:        repo,
		ttl:         ttl,
		tierTimeout: tierTimeout,
		logger:      logger,
	}
}

// Resolve returns the record for code, consulting the local tier, the
// shared tier, and finally the repository. A repository hit repopulates
// both tiers. Tier failures and timeouts fall through to the next layer.
func (c *Cache) Resolve(ctx context.Context, code string) (*alias.Record, error) {
	if rec, err := c.tierGet(ctx, c.local, code); err == nil {
		return rec, nil
	}

	if rec, err := c.tierGet(ctx, c.shared, code); err == nil {
		c.tierSet(ctx, c.local, code, rec)

		return rec, nil
	}

	v, err, _ := c.group.Do(code, func() (any, error) {
		rec, err := c.repo.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}

		c.Populate(ctx, code, rec)

		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*alias.Record), nil
}

// Populate writes a record into both tiers with a fresh TTL.
func (c *Cache) Populate(ctx context.Context, code string, rec *alias.Record) {
	c.tierSet(ctx, c.local, code, rec)
	c.tierSet(ctx, c.shared, code, rec)
}

// Invalidate removes code from both tiers. Called synchronously with any
// mutation of the underlying record.
func (c *Cache) Invalidate(ctx context.Context, code string) {
	for _, tier := range []Tier{c.local, c.shared} {
		tctx, cancel := context.WithTimeout(ctx, c.tierTimeout)

		if err := tier.Delete(tctx, code); err != nil {
			c.logger.Warn("cache invalidation failed", zap.String("code", code), zap.Error(err))
		}

		cancel()
	}
}

// Warm loads the given codes from the repository into both tiers. Codes
// that no longer resolve are skipped.
func (c *Cache) Warm(ctx context.Context, codes []string) {
	for _, code := range codes {
		if ctx.Err() != nil {
			return
		}

		rec, err := c.repo.GetByCode(ctx, code)
		if err != nil {
			if !errors.Is(err, alias.ErrNotFound) {
				c.logger.Warn("cache warm fetch failed", zap.String("code", code), zap.Error(err))
			}

			continue
		}

		c.Populate(ctx, code, rec)
	}
}

func (c *Cache) tierGet(ctx context.Context, tier Tier, code string) (*alias.Record, error) {
	tctx, cancel := context.WithTimeout(ctx, c.tierTimeout)
	defer cancel()

	rec, err := tier.Get(tctx, code)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("cache tier degraded", zap.String("code", code), zap.Error(err))
		}

		return nil, err
	}

	return rec, nil
}

func (c *Cache) tierSet(ctx context.Context, tier Tier, code string, rec *alias.Record) {
	tctx, cancel := context.WithTimeout(ctx, c.tierTimeout)
	defer cancel()

	if err := tier.Set(tctx, code, rec, c.ttl); err != nil {
		c.logger.Warn("cache tier populate failed", zap.String("code", code), zap.Error(err))
	}
}
