// Package cache implements a fail-open, read-through JSON cache and a
// fixed-window rate limiter on Redis.
//
// Fail-open means the cache never turns a Redis outage into a request
// failure: a nil client or any Redis error degrades to a miss on reads and a
// no-op on writes, and callers fall through to the durable store. The same
// policy applies to the rate limiter, which admits traffic when Redis is
// unreachable.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits.",
		},
		[]string{"prefix"},
	)
	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses, including fail-open misses.",
		},
		[]string{"prefix"},
	)
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses)
}

// keyPrefix extracts the key family before the first ':' for bounded metric
// cardinality ("messages:17:0:50::0" -> "messages").
func keyPrefix(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

// Cache is a thin JSON cache over a Redis client. The zero value and a Cache
// built from a nil client are both valid and behave as a disabled cache.
type Cache struct {
	rdb *redis.Client
}

// New wraps an optional Redis client. Passing nil yields a disabled cache.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Enabled reports whether a Redis client is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetJSON looks up key and unmarshals its value into dest. It returns true
// only on a usable hit; errors and undecodable payloads count as misses.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if !c.Enabled() {
		cacheMisses.WithLabelValues(keyPrefix(key)).Inc()
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		}
		cacheMisses.WithLabelValues(keyPrefix(key)).Inc()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache payload undecodable, treating as miss")
		cacheMisses.WithLabelValues(keyPrefix(key)).Inc()
		return false
	}
	cacheHits.WithLabelValues(keyPrefix(key)).Inc()
	return true
}

// SetJSON stores value under key with the given TTL. Failures are logged and
// swallowed; the next read simply misses.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache value not serializable, skipping set")
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Delete removes exact keys. Failures are swallowed; stale entries expire on
// their own TTL.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Debug().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}

// DeletePrefix removes every key starting with prefix using a SCAN walk, so
// large keyspaces are never blocked by a KEYS call.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) {
	if !c.Enabled() {
		return
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				log.Debug().Err(err).Str("prefix", prefix).Msg("cache prefix delete failed")
				return
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		log.Debug().Err(err).Str("prefix", prefix).Msg("cache prefix scan failed")
		return
	}
	if len(batch) > 0 {
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			log.Debug().Err(err).Str("prefix", prefix).Msg("cache prefix delete failed")
		}
	}
}
