package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// keyPrefix namespaces every key this process writes.
const keyPrefix = "studydash:"

// Redis is a Cache backed by a Redis server.
type Redis struct {
	opts *redis.Options
	log  *zap.Logger

	mu sync.RWMutex
	rc *redis.Client
}

// NewRedis connects to addr and verifies the connection with a ping.
func NewRedis(addr, password string, db int, log *zap.Logger) (*Redis, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := &redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rc, err := dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Redis{opts: opts, rc: rc, log: log.Named("cache")}, nil
}

func dial(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	o := *opts
	rc := redis.NewClient(&o)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return rc, nil
}

func (r *Redis) client() *redis.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rc
}

// Get returns the value for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client().Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		r.log.Debug("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false, err
	}
	return b, true, nil
}

// Set stores value under key for ttl.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client().Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		r.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Ping checks the server.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client().Ping(ctx).Err()
}

// Reconnect dials a fresh client and swaps it in once it answers a ping.
// The old client is closed; on failure the current client is kept.
func (r *Redis) Reconnect(ctx context.Context) error {
	rc, err := dial(ctx, r.opts)
	if err != nil {
		return err
	}
	r.mu.Lock()
	old := r.rc
	r.rc = rc
	r.mu.Unlock()

	r.log.Info("redis reconnected", zap.String("addr", r.opts.Addr))
	return old.Close()
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.client().Close()
}
