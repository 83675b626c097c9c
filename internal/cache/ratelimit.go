package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Total number of requests refused by the fixed-window limiter.",
	},
	[]string{"action"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// Limiter is a fixed-window counter on Redis. Each (key, window) bucket is an
// INCR-ed integer whose TTL is set when the bucket is first created, so the
// window is anchored at the first event rather than aligned to wall-clock
// boundaries. A burst of up to 2x the budget is possible across a window
// edge; that is accepted for the simplicity of a single round trip.
type Limiter struct {
	rdb *redis.Client
}

// NewLimiter wraps an optional Redis client. Passing nil yields a disabled
// limiter that admits everything.
func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// RateLimitKey names the counter bucket for an action by one actor,
// e.g. "rl:msg:42".
func RateLimitKey(action string, actorID int64) string {
	return fmt.Sprintf("rl:%s:%d", action, actorID)
}

// IsRateLimited counts one event against key and reports whether the budget
// for the current window is now exceeded. The counting event itself is the
// limit-th admit; only events beyond the budget are refused. Redis being
// unreachable admits the event (fail open).
func (l *Limiter) IsRateLimited(ctx context.Context, key string, limit int64, window time.Duration) bool {
	if l == nil || l.rdb == nil {
		return false
	}
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("rate limiter unavailable, admitting")
		return false
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("rate limit window expire failed")
		}
	}
	if count > limit {
		rateLimited.WithLabelValues(limitAction(key)).Inc()
		return true
	}
	return false
}

// limitAction pulls the action segment out of "rl:<action>:<actor>" so the
// metric label stays bounded. Keys of another shape are reported whole.
func limitAction(key string) string {
	rest, ok := strings.CutPrefix(key, "rl:")
	if !ok {
		return key
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		return rest[:i]
	}
	return rest
}
