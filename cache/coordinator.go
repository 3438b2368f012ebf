// Package cache holds derived read views (dashboard aggregates, reports,
// equipment listings) in process memory, mirrored to Redis when one is
// configured. Mutations invalidate; TTL is the backstop.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyDashboardStats   = "dashboard_stats"
	KeyUsageReport      = "usage_report"
	KeyEquipmentGroups  = "equipment_groups"
	KeyLowStock         = "low_stock"
	PrefixEquipmentList = "equipment_list:"
)

const (
	defaultNamespace     = "eqcache:"
	defaultRemoteTimeout = 200 * time.Millisecond
	sweepThreshold       = 1024
)

type entry struct {
	val     []byte
	expires time.Time
}

type Coordinator struct {
	mu      sync.RWMutex
	entries map[string]entry

	rdb           *redis.Client
	namespace     string
	remoteTimeout time.Duration
	now           func() time.Time
}

type Option func(*Coordinator)

// WithRedis mirrors entries to rdb. Redis errors are logged and never
// returned to callers.
func WithRedis(rdb *redis.Client) Option {
	return func(c *Coordinator) { c.rdb = rdb }
}

func WithNamespace(ns string) Option {
	return func(c *Coordinator) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

func WithRemoteTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.remoteTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		entries:       make(map[string]entry),
		namespace:     defaultNamespace,
		remoteTimeout: defaultRemoteTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes the cached value for key into dst. It reports false on a miss,
// an expired entry, or an undecodable value.
func (c *Coordinator) Get(ctx context.Context, key string, dst any) bool {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		if c.now().Before(e.expires) && json.Unmarshal(e.val, dst) == nil {
			return true
		}
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}

	if c.rdb == nil {
		return false
	}
	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	pipe := c.rdb.Pipeline()
	getCmd := pipe.Get(rctx, c.namespace+key)
	ttlCmd := pipe.PTTL(rctx, c.namespace+key)
	if _, err := pipe.Exec(rctx); err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: redis get %s: %v", key, err)
		}
		return false
	}
	b, err := getCmd.Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false
	}
	if ttl := ttlCmd.Val(); ttl > 0 {
		c.storeLocal(key, b, ttl)
	}
	return true
}

// Set stores value under key with an absolute expiry of now+ttl.
func (c *Coordinator) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache: encode %s: %v", key, err)
		return
	}
	c.storeLocal(key, b, ttl)

	if c.rdb == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()
	if err := c.rdb.Set(rctx, c.namespace+key, b, ttl).Err(); err != nil {
		log.Printf("cache: redis set %s: %v", key, err)
	}
}

// Invalidate removes keys immediately.
func (c *Coordinator) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()

	if c.rdb == nil {
		return
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.namespace+k)
	}
	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()
	if err := c.rdb.Del(rctx, full...).Err(); err != nil {
		log.Printf("cache: redis del %v: %v", keys, err)
	}
}

// InvalidatePrefix removes every key starting with prefix.
func (c *Coordinator) InvalidatePrefix(ctx context.Context, prefix string) {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	c.deleteRemotePattern(ctx, c.namespace+prefix+"*")
}

// InvalidateAll empties the cache. The Redis mirror only loses keys in this
// cache's namespace; sessions live in the same instance.
func (c *Coordinator) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	c.deleteRemotePattern(ctx, c.namespace+"*")
}

// InvalidateAggregates drops every derived view an equipment or request
// mutation can affect.
func (c *Coordinator) InvalidateAggregates(ctx context.Context) {
	c.Invalidate(ctx, KeyDashboardStats, KeyUsageReport, KeyEquipmentGroups, KeyLowStock)
	c.InvalidatePrefix(ctx, PrefixEquipmentList)
}

func (c *Coordinator) storeLocal(key string, b []byte, ttl time.Duration) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= sweepThreshold {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = entry{val: b, expires: now.Add(ttl)}
}

func (c *Coordinator) deleteRemotePattern(ctx context.Context, pattern string) {
	if c.rdb == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(rctx, cursor, pattern, 100).Result()
		if err != nil {
			log.Printf("cache: redis scan %s: %v", pattern, err)
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(rctx, keys...).Err(); err != nil {
				log.Printf("cache: redis del %s: %v", pattern, err)
				return
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
