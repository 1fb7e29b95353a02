package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the distributed counter backing fixed-window admission
// control. Counters are shared by all service instances so limits hold
// cluster-wide.
type CounterStore interface {
	// Incr increments the counter at key and returns the new count.
	// The counter expires ttl after its first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
