package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores serialized list responses in Redis with a short TTL.
// A nil client disables caching entirely.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

// GetJSON loads a cached value into dest. The bool reports a cache hit.
func (c Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c.R == nil {
		return false, nil
	}
	raw, err := c.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores value under key for the configured TTL.
func (c Cache) SetJSON(ctx context.Context, key string, value any) error {
	if c.R == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return c.R.Set(ctx, key, raw, ttl).Err()
}

// InvalidatePrefix drops every cached key under the given prefix.
func (c Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if c.R == nil {
		return nil
	}
	iter := c.R.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.R.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func listCacheKey(entity string, q listKeyParams) string {
	return fmt.Sprintf("catalog:%s:p=%d:ps=%d:q=%s:ob=%s:od=%s:paged=%t",
		entity, q.Page, q.PageSize, q.Search, q.OrderBy, q.OrderDir, q.Paged)
}

type listKeyParams struct {
	Page     int
	PageSize int
	Search   string
	OrderBy  string
	OrderDir string
	Paged    bool
}
