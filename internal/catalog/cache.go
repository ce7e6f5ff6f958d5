package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON-encoded listing payloads in Redis. A nil cache or nil
// client degrades to a no-op so callers never have to branch.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) usable(key string) bool {
	return c != nil && c.client != nil && key != ""
}

// GetJSON decodes the cached payload into dst, reporting whether the key
// was present.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.usable(key) {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.usable(key) {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete drops a cached key, used on admin writes that invalidate listings.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.usable(key) {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}
