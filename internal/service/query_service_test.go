package service

import (
	"context"
	"testing"
	"time"

	"github.com/kodepos-id/kodepos_api/internal/cache"
	"github.com/kodepos-id/kodepos_api/internal/models"
)

// memoryStore is an in-memory stand-in for the durable cache table.
type memoryStore struct {
	entries map[string]*models.CacheEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]*models.CacheEntry{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (*models.CacheEntry, error) {
	entry, ok := m.entries[key]
	if !ok || !entry.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return entry, nil
}

func (m *memoryStore) Set(_ context.Context, key string, data []byte, expiresAt time.Time) error {
	m.entries[key] = &models.CacheEntry{CacheKey: key, ResultData: data, ExpiresAt: expiresAt}
	return nil
}

// countingSearcher records how often the store is actually queried.
type countingSearcher struct {
	records []models.PostalRecord
	calls   int
}

func (c *countingSearcher) Search(_ context.Context, _ string, _ int) ([]models.PostalRecord, error) {
	c.calls++
	return c.records, nil
}

// countingLister wraps a record set and counts scans.
type countingLister struct {
	records []models.PostalRecord
	calls   int
}

func (c *countingLister) ListWithCoordinates(_ context.Context) ([]models.PostalRecord, error) {
	c.calls++
	return c.records, nil
}

func TestSearchCacheThrough(t *testing.T) {
	searcher := &countingSearcher{records: postalRecords("40111", "40112")}
	svc := NewQueryService(searcher, nil, cache.NewResultCache(newMemoryStore(), nil))
	ctx := context.Background()

	first, err := svc.Search(ctx, "bandung")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if first.Cached {
		t.Error("first query must be a miss")
	}
	if len(first.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(first.Records))
	}

	second, err := svc.Search(ctx, "Bandung") // case-insensitive key
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !second.Cached {
		t.Error("second query must be served from cache")
	}
	if searcher.calls != 1 {
		t.Errorf("store queried %d times, want 1", searcher.calls)
	}
	if len(second.Records) != 2 || second.Records[0].Code != first.Records[0].Code {
		t.Error("cached result must match the original")
	}
}

func TestDetectCachesEmptyResult(t *testing.T) {
	lister := &countingLister{records: bandungRecords()}
	svc := NewQueryService(nil, NewGeoService(lister), cache.NewResultCache(newMemoryStore(), nil))
	ctx := context.Background()

	// Middle of the Java Sea: no match, but the outcome is still cached.
	first, err := svc.Detect(ctx, -5.0, 110.0, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if first.Match != nil || first.Cached {
		t.Fatalf("expected uncached empty result, got %+v", first)
	}

	second, err := svc.Detect(ctx, -5.0, 110.0, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if second.Match != nil {
		t.Error("cached empty result must stay empty")
	}
	if !second.Cached {
		t.Error("second detect must be a cache hit")
	}
	if lister.calls != 1 {
		t.Errorf("geo scan ran %d times, want 1", lister.calls)
	}
}

func TestNearbyCacheKeyIncludesRadius(t *testing.T) {
	lister := &countingLister{records: bandungRecords()}
	svc := NewQueryService(nil, NewGeoService(lister), cache.NewResultCache(newMemoryStore(), nil))
	ctx := context.Background()

	if _, err := svc.Nearby(ctx, -6.9175, 107.6191, 5); err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	// Different radius must not reuse the cached result.
	result, err := svc.Nearby(ctx, -6.9175, 107.6191, 10)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if result.Cached {
		t.Error("a different radius must miss the cache")
	}
	if lister.calls != 2 {
		t.Errorf("geo scan ran %d times, want 2", lister.calls)
	}
}
