package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kodepos-id/kodepos_api/internal/cache"
	"github.com/kodepos-id/kodepos_api/internal/metrics"
	"github.com/kodepos-id/kodepos_api/internal/models"
)

// SearchLimit caps how many records a free-text search returns.
const SearchLimit = 100

// recordSearcher is the slice of the postal repository the query service needs.
type recordSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.PostalRecord, error)
}

// SearchResult is a free-text search outcome with cache/timing metadata.
type SearchResult struct {
	Records []models.PostalRecord `json:"records"`
	Cached  bool                  `json:"cached"`
	TookMs  int64                 `json:"tookMs"`
}

// DetectResult is a detect outcome. Match is nil when nothing is in range.
type DetectResult struct {
	Match  *models.GeoMatch `json:"match"`
	Cached bool             `json:"cached"`
	TookMs int64            `json:"tookMs"`
}

// NearbyResult is a nearby outcome with cache/timing metadata.
type NearbyResult struct {
	Matches []models.GeoMatch `json:"matches"`
	Cached  bool              `json:"cached"`
	TookMs  int64             `json:"tookMs"`
}

// QueryService serves the read path: it consults the result cache, falls
// back to the canonical table or the geospatial engine on a miss, then
// repopulates the cache before returning.
type QueryService struct {
	postalRepo recordSearcher
	geo        *GeoService
	cache      *cache.ResultCache
}

// NewQueryService creates a new QueryService.
func NewQueryService(postalRepo recordSearcher, geo *GeoService, resultCache *cache.ResultCache) *QueryService {
	return &QueryService{postalRepo: postalRepo, geo: geo, cache: resultCache}
}

// Search returns records matching the query string, cache-through.
func (s *QueryService) Search(ctx context.Context, query string) (*SearchResult, error) {
	began := time.Now()
	metrics.QueriesTotal.WithLabelValues("search").Inc()
	key := cache.SearchKey(query)

	if data, ok := s.cache.Get(ctx, key); ok {
		var records []models.PostalRecord
		if err := json.Unmarshal(data, &records); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("search").Inc()
			return &SearchResult{Records: records, Cached: true, TookMs: time.Since(began).Milliseconds()}, nil
		}
		log.Warn().Str("cache_key", key).Msg("discarding undecodable cache entry")
	}
	metrics.CacheMissesTotal.WithLabelValues("search").Inc()

	records, err := s.postalRepo.Search(ctx, query, SearchLimit)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, records, cache.SearchTTL)
	return &SearchResult{Records: records, Cached: false, TookMs: time.Since(began).Milliseconds()}, nil
}

// Detect returns the nearest record within radiusKm, cache-through. A
// missing match is cached too: "nothing here" is as expensive to compute as
// a hit.
func (s *QueryService) Detect(ctx context.Context, lat, lon, radiusKm float64) (*DetectResult, error) {
	began := time.Now()
	metrics.QueriesTotal.WithLabelValues("detect").Inc()
	key := cache.DetectKey(lat, lon, radiusKm)

	if data, ok := s.cache.Get(ctx, key); ok {
		var match *models.GeoMatch
		if err := json.Unmarshal(data, &match); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("detect").Inc()
			return &DetectResult{Match: match, Cached: true, TookMs: time.Since(began).Milliseconds()}, nil
		}
		log.Warn().Str("cache_key", key).Msg("discarding undecodable cache entry")
	}
	metrics.CacheMissesTotal.WithLabelValues("detect").Inc()

	match, err := s.geo.Detect(ctx, lat, lon, radiusKm)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, match, cache.DetectTTL)
	return &DetectResult{Match: match, Cached: false, TookMs: time.Since(began).Milliseconds()}, nil
}

// Nearby returns up to NearbyLimit records within radiusKm, cache-through.
func (s *QueryService) Nearby(ctx context.Context, lat, lon, radiusKm float64) (*NearbyResult, error) {
	began := time.Now()
	metrics.QueriesTotal.WithLabelValues("nearby").Inc()
	key := cache.NearbyKey(lat, lon, radiusKm)

	if data, ok := s.cache.Get(ctx, key); ok {
		var matches []models.GeoMatch
		if err := json.Unmarshal(data, &matches); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("nearby").Inc()
			return &NearbyResult{Matches: matches, Cached: true, TookMs: time.Since(began).Milliseconds()}, nil
		}
		log.Warn().Str("cache_key", key).Msg("discarding undecodable cache entry")
	}
	metrics.CacheMissesTotal.WithLabelValues("nearby").Inc()

	matches, err := s.geo.Nearby(ctx, lat, lon, radiusKm)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, matches, cache.NearbyTTL)
	return &NearbyResult{Matches: matches, Cached: false, TookMs: time.Since(began).Milliseconds()}, nil
}

// cacheSet marshals and stores a result. Failures never propagate.
func (s *QueryService) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("failed to marshal cache value")
		return
	}
	s.cache.Set(ctx, key, data, ttl)
}
