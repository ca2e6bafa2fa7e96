package bucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const cacheKeyPrefix = "bucket:"

// ViewCache is a read-through cache for bucket views. A nil *ViewCache is
// valid and disables caching, so wiring stays unconditional.
type ViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewViewCache wraps a Redis client. Returns nil when the client is nil.
func NewViewCache(client *redis.Client, ttl time.Duration) *ViewCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ViewCache{client: client, ttl: ttl}
}

// Get returns the cached view for the id, or (nil, nil) on a miss.
func (c *ViewCache) Get(ctx context.Context, id string) (*View, error) {
	if c == nil {
		return nil, nil
	}

	raw, err := c.client.Get(ctx, cacheKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var view View
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &view, nil
}

// Set stores a view. The entry never outlives the record's own expiry.
func (c *ViewCache) Set(ctx context.Context, view View) error {
	if c == nil {
		return nil
	}

	ttl := c.ttl
	if remaining := time.Until(view.ExpiresAt); remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+view.ID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached view for the id.
func (c *ViewCache) Invalidate(ctx context.Context, id string) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, cacheKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
