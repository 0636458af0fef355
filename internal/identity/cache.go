package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimsCache keeps a short-lived Redis copy of each identity's claim
// flags. Entries are invalidated on every claims write, so the TTL only
// bounds staleness when an invalidation is lost.
type ClaimsCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewClaimsCache(redisURL string, ttl time.Duration) (*ClaimsCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewClaimsCacheWithClient(client, ttl), nil
}

// NewClaimsCacheWithClient creates a cache from an existing Redis client.
func NewClaimsCacheWithClient(client *redis.Client, ttl time.Duration) *ClaimsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ClaimsCache{
		client: client,
		prefix: "claims:",
		ttl:    ttl,
	}
}

func (c *ClaimsCache) key(id string) string {
	return c.prefix + id
}

func (c *ClaimsCache) Get(ctx context.Context, id string) (map[string]bool, bool, error) {
	payload, err := c.client.Get(ctx, c.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached claims: %w", err)
	}

	var claims map[string]bool
	if err := json.Unmarshal([]byte(payload), &claims); err != nil {
		return nil, false, fmt.Errorf("decode cached claims: %w", err)
	}
	return claims, true, nil
}

func (c *ClaimsCache) Set(ctx context.Context, id string, claims map[string]bool) error {
	payload, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}
	if err := c.client.Set(ctx, c.key(id), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache claims: %w", err)
	}
	return nil
}

func (c *ClaimsCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("invalidate claims: %w", err)
	}
	return nil
}

func (c *ClaimsCache) Close() error {
	return c.client.Close()
}

func (c *ClaimsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
