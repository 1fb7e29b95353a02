package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Identity is the rate-limited caller: an authenticated user id or an
// anonymous client address.
type Identity struct {
	Key           string
	Authenticated bool
}

// Decision is the outcome of an admission check. Limit and Remaining feed
// the quota response headers on endpoints that expose them.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter is the fixed-window admission controller. Every check consumes
// one unit from the caller's window; denied checks are not rolled back, so
// a saturated window stays saturated until it resets.
type Limiter struct {
	store  CounterStore
	policy *Policy
	logger *zap.Logger
	now    func() time.Time
}

// NewLimiter creates an admission controller over the given counter store
// and policy tables.
func NewLimiter(store CounterStore, policy *Policy, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// CheckAndConsume increments the caller's window counter for the endpoint
// and decides admission. Endpoints without a configured policy are always
// allowed. If the counter store is unreachable the limiter fails open:
// admission control protects capacity, it must not become the outage.
func (l *Limiter) CheckAndConsume(ctx context.Context, id Identity, endpoint string) Decision {
	limits, ok := l.policy.Limits(endpoint)
	if !ok {
		return Decision{Allowed: true}
	}

	cfg := limits.Anonymous
	tier := "anon"

	if id.Authenticated {
		cfg = limits.Authenticated
		tier = "auth"
	}

	now := l.now()
	windowStart := now.Truncate(cfg.Window)
	resetAt := windowStart.Add(cfg.Window)

	key := fmt.Sprintf("rl:%s:%s:%s:%d", endpoint, tier, id.Key, windowStart.Unix())

	count, err := l.store.Incr(ctx, key, cfg.Window)
	if err != nil {
		l.logger.Warn("counter store unavailable, admitting request",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)

		return Decision{Allowed: true, Limit: cfg.Limit, Remaining: cfg.Limit, ResetAt: resetAt}
	}

	decision := Decision{
		Limit:     cfg.Limit,
		Remaining: max(cfg.Limit-count, 0),
		ResetAt:   resetAt,
	}

	if count > cfg.Limit {
		decision.RetryAfter = resetAt.Sub(now)

		return decision
	}

	decision.Allowed = true

	return decision
}
