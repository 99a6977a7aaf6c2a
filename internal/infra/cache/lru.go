package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultLRUSize is used when no size is configured.
const DefaultLRUSize = 1024

type lruEntry struct {
	value   []byte
	expires time.Time
}

// LRU is an in-process Cache. Entries expire lazily on read.
type LRU struct {
	cache *lru.Cache
	now   func() time.Time
}

// NewLRU creates an LRU holding at most size entries.
func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c, now: time.Now}, nil
}

// Get returns the value for key if present and not expired.
func (l *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	e := v.(lruEntry)
	if !e.expires.IsZero() && !l.now().Before(e.expires) {
		l.cache.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value for ttl; ttl <= 0 never expires.
func (l *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := lruEntry{value: value}
	if ttl > 0 {
		e.expires = l.now().Add(ttl)
	}
	l.cache.Add(key, e)
	return nil
}

// Ping always succeeds.
func (l *LRU) Ping(context.Context) error { return nil }

// Close drops all entries.
func (l *LRU) Close() error {
	l.cache.Purge()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (l *LRU) Len() int { return l.cache.Len() }
