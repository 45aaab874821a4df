package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/harmonyloop/sparkd-backend/internal/profile"
)

// ErrCacheMiss is returned when no cached entry exists for a user.
var ErrCacheMiss = errors.New("profile cache miss")

// Cache is the bounded, time-limited profile cache. Staleness within the TTL
// is tolerated for candidate pre-filtering and scoring; lifecycle transitions
// bypass it and read the store directly.
type Cache interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
	Set(ctx context.Context, p *profile.Profile) error
	Invalidate(ctx context.Context, userID string) error
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Cache over a Redis client with per-entry TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) Cache {
	return &redisCache{client: client, ttl: ttl}
}

func cacheKey(userID string) string {
	return "matching:profile:" + userID
}

func (c *redisCache) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var p profile.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		// A corrupt entry behaves like a miss; the fill path overwrites it.
		return nil, ErrCacheMiss
	}

	return &p, nil
}

func (c *redisCache) Set(ctx context.Context, p *profile.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(p.UserID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	return nil
}

func (c *redisCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
