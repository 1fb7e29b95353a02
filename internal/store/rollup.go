package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rezolv/rezolv/internal/clicks"
)

// RollupStore persists click rollups in Postgres and tracks approximate
// distinct visitors in Redis HyperLogLogs, one per (alias, day).
type RollupStore struct {
	pool   *pgxpool.Pool
	client *redis.Client
}

// NewRollupStore creates a rollup store over Postgres and Redis.
func NewRollupStore(pool *pgxpool.Pool, client *redis.Client) *RollupStore {
	return &RollupStore{pool: pool, client: client}
}

func (s *RollupStore) AddClicks(ctx context.Context, key clicks.RollupKey, n int64) error {
	query := `
		INSERT INTO click_rollups (alias_id, bucket_start, granularity, country, device_type, browser, clicks)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (alias_id, bucket_start, granularity, country, device_type, browser)
		DO UPDATE SET clicks = click_rollups.clicks + EXCLUDED.clicks
	`

	_, err := s.pool.Exec(ctx, query,
		key.AliasID,
		key.BucketStart,
		key.Granularity,
		key.Country,
		key.DeviceType,
		key.Browser,
		n,
	)

	return err
}

func (s *RollupStore) AddVisitor(
	ctx context.Context, aliasID uuid.UUID, day time.Time, clientAddress string,
) error {
	return s.client.PFAdd(ctx, visitorKey(aliasID, day), clientAddress).Err()
}

func (s *RollupStore) EstimateVisitors(
	ctx context.Context, aliasID uuid.UUID, day time.Time,
) (int64, error) {
	return s.client.PFCount(ctx, visitorKey(aliasID, day)).Result()
}

func visitorKey(aliasID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("visitors:%s:%s", aliasID, day.UTC().Format("2006-01-02"))
}

// Compile-time check.
var _ clicks.RollupStore = (*RollupStore)(nil)
