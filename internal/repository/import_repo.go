package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// ImportRepository handles persistence for import jobs, their configuration,
// validation results and batch statistics.
type ImportRepository struct {
	db *sqlx.DB
}

// NewImportRepository creates a new ImportRepository.
func NewImportRepository(db *sqlx.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

const jobColumns = `id, filename, file_size, content_type, status,
	total_records, processed_records, successful_records, failed_records,
	duplicate_records, processing_time_ms, error_message, created_by,
	created_at, updated_at, completed_at`

// CreateJob inserts a new job row.
func (r *ImportRepository) CreateJob(ctx context.Context, job *models.ImportJob) error {
	const q = `
        INSERT INTO import_jobs (
            id, filename, file_size, content_type, status, created_by,
            created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
        RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, q,
		job.ID, job.Filename, job.FileSize, job.ContentType, job.Status, job.CreatedBy,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

// GetJob returns a job by id, or sql.ErrNoRows.
func (r *ImportRepository) GetJob(ctx context.Context, id string) (*models.ImportJob, error) {
	const q = `SELECT ` + jobColumns + ` FROM import_jobs WHERE id = $1 LIMIT 1`

	var job models.ImportJob
	if err := r.db.GetContext(ctx, &job, q, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJobStatus sets a job's status and, for terminal states, its
// completion timestamp. errorMessage may be nil.
func (r *ImportRepository) UpdateJobStatus(ctx context.Context, id string, status models.JobStatus, errorMessage *string) error {
	const q = `
        UPDATE import_jobs SET
            status = $2,
            error_message = COALESCE($3, error_message),
            completed_at = CASE WHEN $4 THEN NOW() ELSE completed_at END,
            updated_at = NOW()
        WHERE id = $1`

	_, err := r.db.ExecContext(ctx, q, id, status, errorMessage, status.IsTerminal())
	return err
}

// SetJobTotal records the number of records parsed from the upload.
func (r *ImportRepository) SetJobTotal(ctx context.Context, id string, total int) error {
	const q = `UPDATE import_jobs SET total_records = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, total)
	return err
}

// AddJobCounters increments the running counters after a batch slice.
func (r *ImportRepository) AddJobCounters(ctx context.Context, id string, processed, successful, failed, duplicates int) error {
	const q = `
        UPDATE import_jobs SET
            processed_records  = processed_records + $2,
            successful_records = successful_records + $3,
            failed_records     = failed_records + $4,
            duplicate_records  = duplicate_records + $5,
            updated_at = NOW()
        WHERE id = $1`

	_, err := r.db.ExecContext(ctx, q, id, processed, successful, failed, duplicates)
	return err
}

// SetProcessingTime records the job's total wall-clock duration.
func (r *ImportRepository) SetProcessingTime(ctx context.Context, id string, ms int64) error {
	const q = `UPDATE import_jobs SET processing_time_ms = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, ms)
	return err
}

// ListJobs returns jobs newest-first with optional status filter.
func (r *ImportRepository) ListJobs(ctx context.Context, status *models.JobStatus, page, perPage int) ([]models.ImportJob, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	var (
		jobs  []models.ImportJob
		total int
	)
	if status != nil {
		const q = `SELECT ` + jobColumns + ` FROM import_jobs
            WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		if err := r.db.SelectContext(ctx, &jobs, q, *status, perPage, offset); err != nil {
			return nil, 0, err
		}
		if err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM import_jobs WHERE status = $1`, *status,
		).Scan(&total); err != nil {
			return nil, 0, err
		}
		return jobs, total, nil
	}

	const q = `SELECT ` + jobColumns + ` FROM import_jobs
        ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &jobs, q, perPage, offset); err != nil {
		return nil, 0, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM import_jobs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// CreateConfiguration inserts the job's immutable import configuration.
func (r *ImportRepository) CreateConfiguration(ctx context.Context, cfg *models.ImportConfiguration) error {
	const q = `
        INSERT INTO import_configurations (
            job_id, duplicate_strategy, batch_size, validate_coordinates,
            skip_invalid_records, notification_email, custom_validation_rules
        ) VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := r.db.ExecContext(ctx, q,
		cfg.JobID, cfg.DuplicateStrategy, cfg.BatchSize, cfg.ValidateCoordinates,
		cfg.SkipInvalidRecords, cfg.NotificationEmail, nullableJSON(cfg.CustomRules),
	)
	return err
}

// GetConfiguration returns the configuration for a job, or sql.ErrNoRows.
func (r *ImportRepository) GetConfiguration(ctx context.Context, jobID string) (*models.ImportConfiguration, error) {
	const q = `
        SELECT job_id, duplicate_strategy, batch_size, validate_coordinates,
               skip_invalid_records, notification_email, custom_validation_rules
        FROM import_configurations WHERE job_id = $1 LIMIT 1`

	var cfg models.ImportConfiguration
	if err := r.db.GetContext(ctx, &cfg, q, jobID); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateValidationResult appends one audit row for a rejected record.
func (r *ImportRepository) CreateValidationResult(ctx context.Context, res *models.ImportValidationResult) error {
	const q = `
        INSERT INTO import_validation_results (
            job_id, row_number, record_data, validation_errors, severity, created_at
        ) VALUES ($1,$2,$3,$4,$5,NOW())`

	_, err := r.db.ExecContext(ctx, q,
		res.JobID, res.RowNumber, nullableJSON(res.RecordData), nullableJSON(res.Errors), res.Severity,
	)
	return err
}

// ListValidationResults returns the audit rows for a job ordered by row number.
func (r *ImportRepository) ListValidationResults(ctx context.Context, jobID string) ([]models.ImportValidationResult, error) {
	const q = `
        SELECT id, job_id, row_number, record_data, validation_errors, severity, created_at
        FROM import_validation_results WHERE job_id = $1 ORDER BY row_number`

	var results []models.ImportValidationResult
	if err := r.db.SelectContext(ctx, &results, q, jobID); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateStatistic appends one per-batch timing sample.
func (r *ImportRepository) CreateStatistic(ctx context.Context, stat *models.ImportStatistic) error {
	const q = `
        INSERT INTO import_statistics (
            job_id, processing_phase, operation_type, records_count,
            execution_time_ms, created_at
        ) VALUES ($1,$2,$3,$4,$5,NOW())`

	_, err := r.db.ExecContext(ctx, q,
		stat.JobID, stat.ProcessingPhase, stat.OperationType, stat.RecordsCount, stat.ExecutionTimeMs,
	)
	return err
}

// PurgeStatisticsBefore deletes timing samples older than the cutoff and
// returns the number of rows removed.
func (r *ImportRepository) PurgeStatisticsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM import_statistics WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// nullableJSON converts empty raw JSON to nil for proper NULL handling in PostgreSQL.
func nullableJSON(v []byte) interface{} {
	if len(v) == 0 {
		return nil
	}
	return v
}
