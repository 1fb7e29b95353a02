package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rezolv/rezolv/internal/alias"
	"github.com/rezolv/rezolv/internal/cache"
)

// RedisTier is the shared cache tier, common to all service instances.
// Records are stored as JSON under a per-code key with the cache TTL.
type RedisTier struct {
	client *redis.Client
	prefix string
}

// NewRedisTier creates a Redis-backed shared cache tier.
func NewRedisTier(client *redis.Client) *RedisTier {
	return &RedisTier{client: client, prefix: "alias:"}
}

// cachedRecord is the wire shape of a cached alias projection.
type cachedRecord struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Destination string     `json:"destination"`
	Code        string     `json:"code"`
	Title       string     `json:"title,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Active      bool       `json:"active"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t *RedisTier) Get(ctx context.Context, code string) (*alias.Record, error) {
	data, err := t.client.Get(ctx, t.prefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrMiss
		}

		return nil, err
	}

	var cached cachedRecord
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return nil, err
	}

	return &alias.Record{
		ID:          cached.ID,
		OwnerID:     cached.OwnerID,
		Destination: cached.Destination,
		Code:        cached.Code,
		Title:       cached.Title,
		Tags:        cached.Tags,
		Active:      cached.Active,
		ExpiresAt:   cached.ExpiresAt,
		CreatedAt:   cached.CreatedAt,
		UpdatedAt:   cached.UpdatedAt,
	}, nil
}

func (t *RedisTier) Set(ctx context.Context, code string, rec *alias.Record, ttl time.Duration) error {
	data, err := json.Marshal(cachedRecord{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		Destination: rec.Destination,
		Code:        rec.Code,
		Title:       rec.Title,
		Tags:        rec.Tags,
		Active:      rec.Active,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	})
	if err != nil {
		return err
	}

	return t.client.Set(ctx, t.prefix+code, data, ttl).Err()
}

func (t *RedisTier) Delete(ctx context.Context, code string) error {
	return t.client.Del(ctx, t.prefix+code).Err()
}

// Compile-time check.
var _ cache.Tier = (*RedisTier)(nil)
