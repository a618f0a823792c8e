package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Window is the fixed counting bucket width.
	Window = time.Minute
	// CounterTTL outlives the window by a margin that absorbs clock skew
	// and in-flight requests at the bucket boundary.
	CounterTTL = 90 * time.Second

	defaultPrefix = "petsphere:ratelimit"
	redisTimeout  = 2 * time.Second
)

// PerUserLimiter counts requests per user in fixed one-minute buckets,
// backed by a shared Redis counter so the quota holds across processes.
type PerUserLimiter struct {
	limit  int
	client *redis.Client
	prefix string
}

// NewPerUserLimiter creates a Redis-backed distributed limiter.
func NewPerUserLimiter(addr, password, prefix string, limit int) (*PerUserLimiter, error) {
	if limit <= 0 {
		return nil, errors.New("rate limiter requires a positive limit")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &PerUserLimiter{
		limit: limit,
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
	}, nil
}

// Allow returns true when the user is within quota for the current bucket.
// The counter increment and its expiry travel in one pipeline so concurrent
// requests never lose updates and a crash cannot strand an un-expiring key;
// the TTL is refreshed on every call, so a missed expiry is corrected by the
// next request. On Redis failures the limiter fails closed.
func (l *PerUserLimiter) Allow(ctx context.Context, userID string) bool {
	if l == nil {
		return false
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "unknown"
	}
	bucket := time.Now().UTC().Unix() / int64(Window/time.Second)
	key := fmt.Sprintf("%s:%s:%d", l.prefix, userID, bucket)

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, CounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false
	}
	return incr.Val() <= int64(l.limit)
}

// Limit returns the configured per-minute quota.
func (l *PerUserLimiter) Limit() int {
	return l.limit
}
