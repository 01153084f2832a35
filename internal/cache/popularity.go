package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/metrics"
	"github.com/cinematch/backend/internal/models"
)

const popularityTTL = 15 * time.Minute

// PopularityCache caches the popularity fallback shelf in Redis. The shelf is
// identical for every anonymous/new user, so one cached list serves the whole
// cold-start tail. A nil receiver (Redis unavailable) degrades to a miss on
// every read and a no-op on every write.
type PopularityCache struct {
	redis *RedisClient
}

// NewPopularityCache wraps the given Redis client. redis may be nil.
func NewPopularityCache(redis *RedisClient) *PopularityCache {
	return &PopularityCache{redis: redis}
}

func popularityKey(minVoteCount, limit int) string {
	return fmt.Sprintf("popular:movies:%d:%d", minVoteCount, limit)
}

// Get returns the cached shelf, or nil on miss or any Redis error.
func (c *PopularityCache) Get(ctx context.Context, minVoteCount, limit int) []*models.Movie {
	if c == nil || c.redis == nil {
		return nil
	}
	raw, err := c.redis.Get(ctx, popularityKey(minVoteCount, limit))
	if err != nil {
		metrics.Get().CacheMissesTotal.WithLabelValues("popularity").Inc()
		return nil
	}
	var movies []*models.Movie
	if err := json.Unmarshal([]byte(raw), &movies); err != nil {
		logger.WarnWithFields("corrupt popularity cache entry, dropping", err)
		_ = c.redis.Del(ctx, popularityKey(minVoteCount, limit))
		return nil
	}
	metrics.Get().CacheHitsTotal.WithLabelValues("popularity").Inc()
	return movies
}

// Set stores the shelf with a short TTL. Failures are logged, never fatal.
func (c *PopularityCache) Set(ctx context.Context, minVoteCount, limit int, movies []*models.Movie) {
	if c == nil || c.redis == nil {
		return
	}
	raw, err := json.Marshal(movies)
	if err != nil {
		return
	}
	if err := c.redis.SetEx(ctx, popularityKey(minVoteCount, limit), raw, popularityTTL); err != nil {
		logger.WarnWithFields("failed to cache popularity shelf", err)
	}
}

// Invalidate drops every cached shelf variant, called after catalog imports.
func (c *PopularityCache) Invalidate(ctx context.Context, minVoteCount int, limits ...int) {
	if c == nil || c.redis == nil {
		return
	}
	keys := make([]string, len(limits))
	for i, l := range limits {
		keys[i] = popularityKey(minVoteCount, l)
	}
	if len(keys) > 0 {
		_ = c.redis.Del(ctx, keys...)
	}
}
