package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// fakeStore mimics the durable cache table, including expiry-on-read.
type fakeStore struct {
	entries map[string]*models.CacheEntry
	failGet bool
	failSet bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]*models.CacheEntry{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (*models.CacheEntry, error) {
	if f.failGet {
		return nil, errors.New("store unavailable")
	}
	entry, ok := f.entries[key]
	if !ok || !entry.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return entry, nil
}

func (f *fakeStore) Set(_ context.Context, key string, data []byte, expiresAt time.Time) error {
	if f.failSet {
		return errors.New("store unavailable")
	}
	f.entries[key] = &models.CacheEntry{CacheKey: key, ResultData: data, ExpiresAt: expiresAt}
	return nil
}

func TestResultCacheRoundTrip(t *testing.T) {
	store := newFakeStore()
	c := NewResultCache(store, nil)
	ctx := context.Background()

	key := DetectKey(-6.9175, 107.6191, 5)
	c.Set(ctx, key, []byte(`{"code":"40111"}`), DetectTTL)

	data, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(data) != `{"code":"40111"}` {
		t.Errorf("data = %s", data)
	}
}

func TestResultCacheExpiredEntryIsMiss(t *testing.T) {
	store := newFakeStore()
	store.entries["k"] = &models.CacheEntry{
		CacheKey:   "k",
		ResultData: []byte("stale"),
		ExpiresAt:  time.Now().Add(-time.Minute),
	}
	c := NewResultCache(store, nil)

	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("expired entry must read as a miss")
	}
}

func TestResultCacheFailuresAreSwallowed(t *testing.T) {
	store := newFakeStore()
	store.failGet = true
	store.failSet = true
	c := NewResultCache(store, nil)
	ctx := context.Background()

	// Neither call may panic or surface an error.
	c.Set(ctx, "k", []byte("v"), time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("failed read must be a miss")
	}
}

func TestDetectKeyRounding(t *testing.T) {
	// Within ~11m the key must collapse to the same value.
	a := DetectKey(-6.91751, 107.61912, 5)
	b := DetectKey(-6.91749, 107.61908, 5)
	if a != b {
		t.Errorf("keys should collapse after rounding: %q vs %q", a, b)
	}

	far := DetectKey(-6.9275, 107.6191, 5)
	if a == far {
		t.Error("distinct coordinates must not share a key")
	}

	wider := DetectKey(-6.91751, 107.61912, 10)
	if a == wider {
		t.Error("radius must be part of the key")
	}
}

func TestSearchKeyNormalization(t *testing.T) {
	if SearchKey("  Bandung ") != SearchKey("bandung") {
		t.Error("search keys must be case- and whitespace-insensitive")
	}
	if SearchKey("bandung") == NearbyKey(-6.9, 107.6, 5) {
		t.Error("key namespaces must not collide")
	}
}
