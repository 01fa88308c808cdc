package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// Fixed TTLs per query shape.
const (
	DetectTTL = 24 * time.Hour
	NearbyTTL = 6 * time.Hour
	SearchTTL = 6 * time.Hour
)

// Store is the durable cache-row backend consulted by ResultCache.
type Store interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Set(ctx context.Context, key string, data []byte, expiresAt time.Time) error
}

// ResultCache caches serialized query results. The durable table is the
// source of truth; a Redis hot tier is consulted first when configured.
// Cache failures are never surfaced to callers: a failed read is a miss,
// a failed write is logged and dropped.
type ResultCache struct {
	store Store
	redis *RedisClient
}

// NewResultCache creates a ResultCache. redis may be nil.
func NewResultCache(store Store, redis *RedisClient) *ResultCache {
	return &ResultCache{store: store, redis: redis}
}

// DetectKey derives the cache key for a detect query. Coordinates are
// rounded to 4 decimal places (~11m) so near-identical lookups share a key.
func DetectKey(lat, lon, radiusKm float64) string {
	return fmt.Sprintf("detect:%.4f:%.4f:%.2f", lat, lon, radiusKm)
}

// NearbyKey derives the cache key for a nearby query.
func NearbyKey(lat, lon, radiusKm float64) string {
	return fmt.Sprintf("nearby:%.4f:%.4f:%.2f", lat, lon, radiusKm)
}

// SearchKey derives the cache key for a free-text search.
func SearchKey(query string) string {
	return "search:" + strings.ToLower(strings.TrimSpace(query))
}

// Get returns the cached value for key and whether it was present and
// unexpired.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.redis != nil {
		data, err := c.redis.Get(ctx, key)
		if err == nil {
			return data, true
		}
		if !IsMiss(err) {
			log.Warn().Err(err).Str("cache_key", key).Msg("redis cache read failed")
		}
	}

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("cache read failed")
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	// Backfill the hot tier with the remaining lifetime.
	if c.redis != nil {
		if remaining := time.Until(entry.ExpiresAt); remaining > 0 {
			if err := c.redis.Set(ctx, key, entry.ResultData, remaining); err != nil {
				log.Warn().Err(err).Str("cache_key", key).Msg("redis cache backfill failed")
			}
		}
	}
	return entry.ResultData, true
}

// Set stores value under key for ttl. Errors are logged and swallowed;
// caching is an optimization, never a correctness dependency.
func (c *ResultCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl)

	if err := c.store.Set(ctx, key, value, expiresAt); err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("cache write failed")
	}
	if c.redis != nil {
		if err := c.redis.Set(ctx, key, value, ttl); err != nil {
			log.Warn().Err(err).Str("cache_key", key).Msg("redis cache write failed")
		}
	}
}
