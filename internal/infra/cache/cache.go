// Package cache provides the byte cache used for read models such as the
// monthly leaderboard. Redis backs it when configured; otherwise an
// in-process LRU with per-entry expiry is used.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Cache stores opaque values with a TTL. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects the cache backend.
type Config struct {
	RedisAddr      string        `toml:"redis_addr"`
	RedisPassword  string        `toml:"redis_password"`
	RedisDB        int           `toml:"redis_db"`
	LRUSize        int           `toml:"lru_size"`
	LeaderboardTTL time.Duration `toml:"leaderboard_ttl"`
}

// New returns a Redis cache when cfg.RedisAddr is set, an LRU otherwise.
func New(cfg Config, log *zap.Logger) (Cache, error) {
	if cfg.RedisAddr != "" {
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	}
	return NewLRU(cfg.LRUSize)
}

// GetJSON decodes a cached JSON value into v. Decode failures count as a miss.
func GetJSON(ctx context.Context, c Cache, key string, v any) bool {
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// SetJSON marshals v and stores it.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, b, ttl)
}
