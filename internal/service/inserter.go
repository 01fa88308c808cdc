package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kodepos-id/kodepos_api/internal/metrics"
	"github.com/kodepos-id/kodepos_api/internal/models"
)

// postalWriter is the slice of the postal repository the inserter needs.
// Both operations resolve duplicates in a single statement so concurrent
// imports cannot race a separate existence check.
type postalWriter interface {
	InsertIgnoreDuplicate(ctx context.Context, rec *models.PostalRecord) (bool, error)
	Upsert(ctx context.Context, rec *models.PostalRecord) error
}

// batchRecorder is the slice of the import repository the inserter needs.
type batchRecorder interface {
	CreateStatistic(ctx context.Context, stat *models.ImportStatistic) error
	AddJobCounters(ctx context.Context, id string, processed, successful, failed, duplicates int) error
}

// BatchResult aggregates the per-record outcomes of one InsertBatch call.
type BatchResult struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

// BatchInserter persists transformed records in bounded-size slices,
// applying the configured duplicate strategy and throttling between slices
// to bound burst load on the store.
type BatchInserter struct {
	postalRepo postalWriter
	importRepo batchRecorder
	batchDelay time.Duration
}

// NewBatchInserter creates a new BatchInserter.
func NewBatchInserter(postalRepo postalWriter, importRepo batchRecorder, batchDelay time.Duration) *BatchInserter {
	return &BatchInserter{
		postalRepo: postalRepo,
		importRepo: importRepo,
		batchDelay: batchDelay,
	}
}

// InsertBatch writes records in slices of batchSize. A per-record failure is
// logged and counted without aborting the remainder. After each slice the
// job's running counters and a timing statistic are recorded, and the
// inter-batch delay is applied unless the slice was the last.
func (b *BatchInserter) InsertBatch(ctx context.Context, jobID string, records []models.PostalRecord, batchSize int, strategy models.DuplicateStrategy) (BatchResult, error) {
	if batchSize < 1 {
		batchSize = 1
	}

	var total BatchResult
	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		slice := records[start:end]

		began := time.Now()
		res := b.insertSlice(ctx, jobID, slice, strategy)
		elapsed := time.Since(began)

		total.Successful += res.Successful
		total.Failed += res.Failed
		total.Duplicates += res.Duplicates

		metrics.ImportBatchDuration.Observe(elapsed.Seconds())
		metrics.ImportRecordsTotal.WithLabelValues("successful").Add(float64(res.Successful))
		metrics.ImportRecordsTotal.WithLabelValues("failed").Add(float64(res.Failed))
		metrics.ImportRecordsTotal.WithLabelValues("duplicate").Add(float64(res.Duplicates))

		if err := b.importRepo.CreateStatistic(ctx, &models.ImportStatistic{
			JobID:           jobID,
			ProcessingPhase: "inserting",
			OperationType:   "batch_insert",
			RecordsCount:    len(slice),
			ExecutionTimeMs: elapsed.Milliseconds(),
		}); err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("failed to record batch statistic")
		}

		if err := b.importRepo.AddJobCounters(ctx, jobID, len(slice), res.Successful, res.Failed, res.Duplicates); err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("failed to update job counters")
		}

		log.Debug().
			Str("job_id", jobID).
			Int("batch_size", len(slice)).
			Int("successful", res.Successful).
			Int("failed", res.Failed).
			Int("duplicates", res.Duplicates).
			Dur("took", elapsed).
			Msg("batch inserted")

		// Throttle between slices, not after the final one.
		if end < len(records) && b.batchDelay > 0 {
			select {
			case <-time.After(b.batchDelay):
			case <-ctx.Done():
				return total, ctx.Err()
			}
		}
	}
	return total, nil
}

func (b *BatchInserter) insertSlice(ctx context.Context, jobID string, slice []models.PostalRecord, strategy models.DuplicateStrategy) BatchResult {
	var res BatchResult
	for i := range slice {
		rec := &slice[i]

		switch strategy {
		case models.DuplicateUpdate:
			if err := b.postalRepo.Upsert(ctx, rec); err != nil {
				log.Error().Err(err).Str("job_id", jobID).Str("code", rec.Code).Msg("upsert failed")
				res.Failed++
				continue
			}
			res.Successful++

		case models.DuplicateError:
			inserted, err := b.postalRepo.InsertIgnoreDuplicate(ctx, rec)
			if err != nil {
				log.Error().Err(err).Str("job_id", jobID).Str("code", rec.Code).Msg("insert failed")
				res.Failed++
				continue
			}
			if !inserted {
				res.Failed++
				continue
			}
			res.Successful++

		default: // skip
			inserted, err := b.postalRepo.InsertIgnoreDuplicate(ctx, rec)
			if err != nil {
				log.Error().Err(err).Str("job_id", jobID).Str("code", rec.Code).Msg("insert failed")
				res.Failed++
				continue
			}
			if !inserted {
				res.Duplicates++
				continue
			}
			res.Successful++
		}
	}
	return res
}
