package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kodepos-id/kodepos_api/internal/repository"
)

// CachePurgeWorker periodically deletes expired rows from the result cache
// table. Reads already filter on expiry, so the purge only reclaims space.
type CachePurgeWorker struct {
	cacheRepo *repository.CacheRepository
	interval  time.Duration
}

// NewCachePurgeWorker constructs a CachePurgeWorker.
func NewCachePurgeWorker(cacheRepo *repository.CacheRepository, interval time.Duration) *CachePurgeWorker {
	return &CachePurgeWorker{
		cacheRepo: cacheRepo,
		interval:  interval,
	}
}

// Start begins the periodic purge loop until context is canceled.
func (w *CachePurgeWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting cache purge worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Cache purge worker stopped")
			return
		}
	}
}

func (w *CachePurgeWorker) run(ctx context.Context) {
	purged, err := w.cacheRepo.PurgeExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge expired cache entries")
		return
	}
	if purged > 0 {
		log.Info().Int64("purged", purged).Msg("Expired cache entries purged")
	}
}
