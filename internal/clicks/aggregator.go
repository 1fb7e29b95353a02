package clicks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rezolv/rezolv/internal/messaging"
	"go.uber.org/zap"
)

// Rollup granularities.
const (
	GranularityDay  = "day"
	GranularityHour = "hour"
)

// RollupKey identifies one rollup bucket.
type RollupKey struct {
	AliasID     uuid.UUID
	BucketStart time.Time
	Granularity string
	Country     string
	DeviceType  string
	Browser     string
}

// RollupStore persists aggregated click counts and approximate-distinct
// visitor sets.
type RollupStore interface {
	// AddClicks adds n clicks to the bucket identified by key.
	AddClicks(ctx context.Context, key RollupKey, n int64) error

	// AddVisitor adds a client address to the approximate-distinct
	// visitor set for (aliasID, day).
	AddVisitor(ctx context.Context, aliasID uuid.UUID, day time.Time, clientAddress string) error

	// EstimateVisitors returns the approximate number of distinct
	// visitors for (aliasID, day).
	EstimateVisitors(ctx context.Context, aliasID uuid.UUID, day time.Time) (int64, error)
}

// NewAggregatorHandler returns the consumer handler that folds click
// events into day and hour rollups plus the per-day visitor estimate.
// Rollups are eventually consistent with the redirect path.
func NewAggregatorHandler(store RollupStore, logger *zap.Logger) messaging.Handler[Event] {
	return func(ctx context.Context, event *Event) error {
		ts := event.Timestamp.UTC()
		day := ts.Truncate(24 * time.Hour)
		hour := ts.Truncate(time.Hour)

		buckets := []RollupKey{
			{
				AliasID:     event.AliasID,
				BucketStart: day,
				Granularity: GranularityDay,
				Country:     event.Country,
				DeviceType:  event.DeviceType,
				Browser:     event.Browser,
			},
			{
				AliasID:     event.AliasID,
				BucketStart: hour,
				Granularity: GranularityHour,
				Country:     event.Country,
				DeviceType:  event.DeviceType,
				Browser:     event.Browser,
			},
		}

		for _, key := range buckets {
			if err := store.AddClicks(ctx, key, 1); err != nil {
				return err
			}
		}

		if err := store.AddVisitor(ctx, event.AliasID, day, event.ClientAddress); err != nil {
			// Visitor estimates are best-effort; the counted rollups
			// are already committed.
			logger.Warn("visitor estimate update failed",
				zap.String("aliasId", event.AliasID.String()),
				zap.Error(err),
			)
		}

		return nil
	}
}
