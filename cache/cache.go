package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/RaghavSood/monswap/metrics"
)

// Store is a durable backing store shared across sessions.
type Store interface {
	LoadCacheEntry(ctx context.Context, key string) (value []byte, storedAt time.Time, found bool, err error)
	SaveCacheEntry(ctx context.Context, key string, value []byte, storedAt time.Time) error
}

type entry[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Cache is a TTL cache keyed by string. An in-memory layer sits in front of an
// optional durable Store. Entries are advisory: an absent store, a store
// error or an undecodable entry is a miss.
type Cache[T any] struct {
	name   string
	ttl    time.Duration
	clock  clock.Clock
	mem    *ttlcache.Cache[string, entry[T]]
	store  Store
	group  singleflight.Group
	logger *zap.Logger
}

type Option[T any] func(*Cache[T])

func WithStore[T any](store Store) Option[T] {
	return func(c *Cache[T]) { c.store = store }
}

func WithClock[T any](clk clock.Clock) Option[T] {
	return func(c *Cache[T]) { c.clock = clk }
}

func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(c *Cache[T]) { c.logger = logger }
}

// New creates a cache. name namespaces durable keys so caches sharing a store
// do not collide.
func New[T any](name string, ttl time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		name:   name,
		ttl:    ttl,
		clock:  clock.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mem = ttlcache.New[string, entry[T]](
		ttlcache.WithTTL[string, entry[T]](ttl),
		ttlcache.WithDisableTouchOnHit[string, entry[T]](),
	)
	return c
}

func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

func (c *Cache[T]) fresh(storedAt time.Time) bool {
	return c.clock.Since(storedAt) < c.ttl
}

// Get returns the value for key if it was stored less than TTL ago.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	if item := c.mem.Get(key); item != nil {
		e := item.Value()
		if c.fresh(e.StoredAt) {
			metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
			return e.Value, true
		}
	}

	if c.store == nil {
		metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
		return zero, false
	}

	raw, storedAt, found, err := c.store.LoadCacheEntry(ctx, c.storeKey(key))
	if err != nil {
		c.logger.Debug("cache store read failed", zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
	}
	if err != nil || !found || !c.fresh(storedAt) {
		metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
		return zero, false
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Debug("corrupt cache entry", zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
		metrics.CacheLookups.WithLabelValues(c.name, "corrupt").Inc()
		return zero, false
	}

	c.mem.Set(key, entry[T]{Value: value, StoredAt: storedAt}, ttlcache.DefaultTTL)
	metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
	return value, true
}

// Put overwrites key unconditionally.
func (c *Cache[T]) Put(ctx context.Context, key string, value T) {
	now := c.clock.Now()
	c.mem.Set(key, entry[T]{Value: value, StoredAt: now}, ttlcache.DefaultTTL)

	if c.store == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug("cache encode failed", zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SaveCacheEntry(ctx, c.storeKey(key), raw, now); err != nil {
		c.logger.Debug("cache store write failed", zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
	}
}

// GetOrFetch returns a cached value or calls fetch to populate it. Concurrent
// misses for the same key share one fetch. Errors are not cached.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		val, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(ctx, key, val)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *Cache[T]) storeKey(key string) string {
	return c.name + ":" + key
}
