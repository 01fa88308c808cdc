package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kodepos-id/kodepos_api/internal/repository"
)

// StatsPurgeWorker trims old import batch statistics so the audit table does
// not grow without bound.
type StatsPurgeWorker struct {
	importRepo *repository.ImportRepository
	interval   time.Duration
	retention  time.Duration
}

// NewStatsPurgeWorker constructs a StatsPurgeWorker.
func NewStatsPurgeWorker(importRepo *repository.ImportRepository, interval, retention time.Duration) *StatsPurgeWorker {
	return &StatsPurgeWorker{
		importRepo: importRepo,
		interval:   interval,
		retention:  retention,
	}
}

// Start begins the periodic purge loop until context is canceled.
func (w *StatsPurgeWorker) Start(ctx context.Context) {
	log.Info().
		Dur("interval", w.interval).
		Dur("retention", w.retention).
		Msg("Starting stats purge worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Stats purge worker stopped")
			return
		}
	}
}

func (w *StatsPurgeWorker) run(ctx context.Context) {
	cutoff := time.Now().Add(-w.retention)
	purged, err := w.importRepo.PurgeStatisticsBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge import statistics")
		return
	}
	if purged > 0 {
		log.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("Old import statistics purged")
	}
}
