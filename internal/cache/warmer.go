package cache

import (
	"context"
	"time"

	"github.com/rezolv/rezolv/internal/alias"
	"go.uber.org/zap"
)

// DefaultWarmInterval is how often the warmer refreshes popular aliases.
const DefaultWarmInterval = 15 * time.Minute

// Warmer periodically loads the most-clicked aliases into both cache tiers
// so popular codes stay hot across TTL evictions and restarts.
type Warmer struct {
	cache    *Cache
	repo     alias.Repository
	interval time.Duration
	topN     int
	lookback time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWarmer creates a cache warmer. topN is how many codes to keep warm,
// lookback is the click-volume window used to rank them.
func NewWarmer(
	c *Cache, repo alias.Repository, interval time.Duration, topN int, lookback time.Duration, logger *zap.Logger,
) *Warmer {
	if interval <= 0 {
		interval = DefaultWarmInterval
	}

	if lookback <= 0 {
		lookback = 24 * time.Hour
	}

	return &Warmer{
		cache:    c,
		repo:     repo,
		interval: interval,
		topN:     topN,
		lookback: lookback,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the warming loop. Cycles run sequentially in a single
// goroutine, so a slow cycle causes later ticks to be dropped rather than
// overlapping runs.
func (w *Warmer) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	go w.loop(ctx)

	return nil
}

func (w *Warmer) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

func (w *Warmer) runCycle(ctx context.Context) {
	start := time.Now()

	codes, err := w.repo.TopCodesByClicks(ctx, w.topN, start.Add(-w.lookback))
	if err != nil {
		w.logger.Warn("cache warm ranking failed", zap.Error(err))

		return
	}

	w.cache.Warm(ctx, codes)

	w.logger.Debug("cache warm cycle complete",
		zap.Int("codes", len(codes)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Shutdown aborts any in-flight cycle and stops the loop.
func (w *Warmer) Shutdown() error {
	if w.cancel != nil {
		w.cancel()
	}

	<-w.done

	return nil
}
