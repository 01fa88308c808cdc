package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kodepos-id/kodepos_api/internal/config"
	"github.com/kodepos-id/kodepos_api/internal/metrics"
	"github.com/kodepos-id/kodepos_api/internal/models"
	"github.com/kodepos-id/kodepos_api/internal/repository"
	"github.com/kodepos-id/kodepos_api/internal/utils"
)

// errJobHalted signals that a job reached a terminal state (typically
// cancelled) while the pipeline was between phases.
var errJobHalted = errors.New("job halted")

// ImportOptions carries caller overrides merged over the default
// configuration at job creation.
type ImportOptions struct {
	DuplicateStrategy   string          `json:"duplicateStrategy"`
	BatchSize           int             `json:"batchSize"`
	ValidateCoordinates *bool           `json:"validateCoordinates"`
	SkipInvalidRecords  *bool           `json:"skipInvalidRecords"`
	NotificationEmail   string          `json:"notificationEmail"`
	CustomRules         json.RawMessage `json:"customValidationRules"`
}

// ImportSummary is the immediate result of processing an upload. The
// estimated duration is a coarse heuristic (records / 100 seconds),
// computed once and never revised.
type ImportSummary struct {
	Success              bool   `json:"success"`
	JobID                string `json:"jobId"`
	TotalRecords         int    `json:"totalRecords"`
	EstimatedDurationSec int    `json:"estimatedDurationSeconds"`
	Message              string `json:"message,omitempty"`
}

// JobStatusInfo is a job snapshot with derived progress figures.
type JobStatusInfo struct {
	Job                   *models.ImportJob `json:"job"`
	ProgressPercentage    float64           `json:"progressPercentage"`
	EstimatedRemainingSec *float64          `json:"estimatedRemainingSeconds,omitempty"`
}

// ImportService owns the import job lifecycle and drives the
// validate/transform/insert pipeline.
type ImportService struct {
	importRepo  *repository.ImportRepository
	validator   *RecordValidator
	transformer *RecordTransformer
	inserter    *BatchInserter
	archive     *ArchiveService
	importCfg   config.ImportConfig
}

// NewImportService creates a new ImportService. archive may be nil.
func NewImportService(
	importRepo *repository.ImportRepository,
	validator *RecordValidator,
	transformer *RecordTransformer,
	inserter *BatchInserter,
	archive *ArchiveService,
	importCfg config.ImportConfig,
) *ImportService {
	return &ImportService{
		importRepo:  importRepo,
		validator:   validator,
		transformer: transformer,
		inserter:    inserter,
		archive:     archive,
		importCfg:   importCfg,
	}
}

// CreateJob allocates a job id and persists the job row together with its
// immutable configuration (defaults merged with caller overrides, batch
// size clamped to the configured maximum).
func (s *ImportService) CreateJob(ctx context.Context, filename string, size int64, contentType string, opts *ImportOptions, createdBy *string) (*models.ImportJob, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "json" && contentType != "csv" {
		return nil, utils.ErrInvalidContentType
	}

	cfg := models.DefaultImportConfiguration()
	cfg.BatchSize = s.importCfg.DefaultBatchSize
	if opts != nil {
		if opts.DuplicateStrategy != "" {
			cfg.DuplicateStrategy = models.DuplicateStrategy(opts.DuplicateStrategy)
		}
		if opts.BatchSize != 0 {
			cfg.BatchSize = opts.BatchSize
		}
		if opts.ValidateCoordinates != nil {
			cfg.ValidateCoordinates = *opts.ValidateCoordinates
		}
		if opts.SkipInvalidRecords != nil {
			cfg.SkipInvalidRecords = *opts.SkipInvalidRecords
		}
		if opts.NotificationEmail != "" {
			cfg.NotificationEmail = &opts.NotificationEmail
		}
		cfg.CustomRules = opts.CustomRules
	}

	// Clamp rather than reject out-of-range batch sizes.
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.BatchSize > s.importCfg.MaxBatchSize {
		cfg.BatchSize = s.importCfg.MaxBatchSize
	}

	if result := s.validator.ValidateConfiguration(&cfg); !result.IsValid {
		return nil, fmt.Errorf("%w: %s", utils.ErrInvalidConfig, result.Errors[0].Message)
	}

	job := &models.ImportJob{
		ID:          uuid.New().String(),
		Filename:    filename,
		FileSize:    size,
		ContentType: contentType,
		Status:      models.JobStatusPending,
		CreatedBy:   createdBy,
	}
	if err := s.importRepo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}

	cfg.JobID = job.ID
	if err := s.importRepo.CreateConfiguration(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to persist import configuration: %w", err)
	}

	log.Info().
		Str("job_id", job.ID).
		Str("filename", filename).
		Str("content_type", contentType).
		Int64("size", size).
		Msg("import job created")
	return job, nil
}

// ProcessImportFile runs the full pipeline for a pending job. Malformed
// uploads and validation catastrophes become job-level failures, never
// errors to the caller; only infrastructure faults (job lookup failing)
// return an error.
func (s *ImportService) ProcessImportFile(ctx context.Context, jobID string, content []byte) (*ImportSummary, error) {
	job, err := s.importRepo.GetJob(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.ErrJobNotFound
		}
		return nil, err
	}
	if job.Status != models.JobStatusPending {
		return nil, utils.ErrJobNotProcessable
	}

	cfg, err := s.importRepo.GetConfiguration(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import configuration: %w", err)
	}

	began := time.Now()
	if err := s.transition(ctx, job, models.JobStatusProcessing); err != nil {
		return s.halted(job), nil
	}

	// Archive the raw upload; never on the critical path.
	if s.archive != nil {
		if _, err := s.archive.ArchiveImportFile(ctx, job.ID, job.Filename, content, job.ContentType); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Msg("upload archive failed")
		}
	}

	if err := s.validator.ValidateFileFormat(content, job.ContentType); err != nil {
		return s.failJob(ctx, job, err.Error()), nil
	}

	rows, err := parseRecords(content, job.ContentType)
	if err != nil {
		return s.failJob(ctx, job, fmt.Sprintf("failed to parse %s payload: %v", job.ContentType, err)), nil
	}

	total := len(rows)
	if err := s.importRepo.SetJobTotal(ctx, job.ID, total); err != nil {
		return s.failJob(ctx, job, fmt.Sprintf("failed to record total: %v", err)), nil
	}
	summary := &ImportSummary{
		JobID:                job.ID,
		TotalRecords:         total,
		EstimatedDurationSec: int(math.Ceil(float64(total) / 100)),
	}

	// Validation phase.
	if err := s.transition(ctx, job, models.JobStatusValidating); err != nil {
		return s.halted(job), nil
	}
	validRows, rejected := s.validateRows(ctx, job.ID, rows, cfg)
	if rejected > 0 && !cfg.SkipInvalidRecords {
		return s.failJob(ctx, job, fmt.Sprintf("validation failed for %d of %d records", rejected, total)), nil
	}
	if rejected > 0 {
		if err := s.importRepo.AddJobCounters(ctx, job.ID, rejected, 0, rejected, 0); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to update job counters")
		}
	}

	// Transformation phase.
	if err := s.transition(ctx, job, models.JobStatusTransforming); err != nil {
		return s.halted(job), nil
	}
	records, dropped := s.transformer.Transform(validRows)
	s.recordDrops(ctx, job.ID, dropped)
	if len(dropped) > 0 {
		if err := s.importRepo.AddJobCounters(ctx, job.ID, len(dropped), 0, len(dropped), 0); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to update job counters")
		}
	}

	// Insertion phase.
	if err := s.transition(ctx, job, models.JobStatusInserting); err != nil {
		return s.halted(job), nil
	}
	result, err := s.inserter.InsertBatch(ctx, job.ID, records, cfg.BatchSize, cfg.DuplicateStrategy)
	if err != nil {
		return s.failJob(ctx, job, fmt.Sprintf("batch insert aborted: %v", err)), nil
	}

	if err := s.importRepo.SetProcessingTime(ctx, job.ID, time.Since(began).Milliseconds()); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record processing time")
	}
	if err := s.transition(ctx, job, models.JobStatusCompleted); err != nil {
		return s.halted(job), nil
	}
	metrics.ImportJobsTotal.WithLabelValues(string(models.JobStatusCompleted)).Inc()

	log.Info().
		Str("job_id", job.ID).
		Int("total", total).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("duplicates", result.Duplicates).
		Dur("took", time.Since(began)).
		Msg("import completed")

	summary.Success = true
	return summary, nil
}

// GetJobStatus returns a job with derived progress. The remaining-time
// estimate is produced only while the job is actively processing.
func (s *ImportService) GetJobStatus(ctx context.Context, jobID string) (*JobStatusInfo, error) {
	job, err := s.importRepo.GetJob(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.ErrJobNotFound
		}
		return nil, err
	}

	info := &JobStatusInfo{Job: job, ProgressPercentage: progressPercentage(job)}
	if remaining := estimatedRemainingSeconds(job, time.Now()); remaining != nil {
		info.EstimatedRemainingSec = remaining
	}
	return info, nil
}

// ListJobs returns jobs newest-first with an optional status filter.
func (s *ImportService) ListJobs(ctx context.Context, status *models.JobStatus, page, perPage int) ([]models.ImportJob, int, error) {
	return s.importRepo.ListJobs(ctx, status, page, perPage)
}

// ListJobErrors returns the persisted validation audit rows for a job.
func (s *ImportService) ListJobErrors(ctx context.Context, jobID string) ([]models.ImportValidationResult, error) {
	if _, err := s.importRepo.GetJob(ctx, jobID); err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.ErrJobNotFound
		}
		return nil, err
	}
	return s.importRepo.ListValidationResults(ctx, jobID)
}

// CancelJob moves a non-terminal job to cancelled. Cancelling a terminal
// job returns false with no side effect. In-flight batch work already
// dispatched is not interrupted; the pipeline observes the flag between
// phases.
func (s *ImportService) CancelJob(ctx context.Context, jobID string) (bool, error) {
	job, err := s.importRepo.GetJob(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, utils.ErrJobNotFound
		}
		return false, err
	}
	if !job.Status.CanTransitionTo(models.JobStatusCancelled) {
		return false, nil
	}
	if err := s.importRepo.UpdateJobStatus(ctx, jobID, models.JobStatusCancelled, nil); err != nil {
		return false, err
	}
	metrics.ImportJobsTotal.WithLabelValues(string(models.JobStatusCancelled)).Inc()
	log.Info().Str("job_id", jobID).Msg("import job cancelled")
	return true, nil
}

// validateRows screens rows, persisting an audit record for every row with
// an error-severity finding. It returns the surviving rows and the count of
// rejected ones.
func (s *ImportService) validateRows(ctx context.Context, jobID string, rows []ImportRow, cfg *models.ImportConfiguration) ([]ImportRow, int) {
	valid := make([]ImportRow, 0, len(rows))
	rejected := 0

	for _, row := range rows {
		result := s.validator.ValidateRecord(ctx, row.Record, row.Number, jobID, cfg)
		if result.IsValid {
			valid = append(valid, row)
			continue
		}
		rejected++
		s.persistValidationFailure(ctx, jobID, row.Number, row.Record, result.Errors)
	}
	return valid, rejected
}

// recordDrops persists an audit row for every record the transformer
// dropped, so silently-skipped inputs remain inspectable.
func (s *ImportService) recordDrops(ctx context.Context, jobID string, dropped []DroppedRow) {
	for _, d := range dropped {
		s.persistValidationFailure(ctx, jobID, d.Number, d.Record, []models.ValidationError{{
			Code:     CodeTransformDropped,
			Message:  d.Reason,
			Severity: models.SeverityError,
		}})
	}
}

func (s *ImportService) persistValidationFailure(ctx context.Context, jobID string, rowNumber int, record models.RawRecord, findings []models.ValidationError) {
	recordData, _ := json.Marshal(record)
	errorData, _ := json.Marshal(findings)
	if err := s.importRepo.CreateValidationResult(ctx, &models.ImportValidationResult{
		JobID:      jobID,
		RowNumber:  rowNumber,
		RecordData: recordData,
		Errors:     errorData,
		Severity:   models.SeverityError,
	}); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Int("row", rowNumber).
			Msg("failed to persist validation result")
	}
}

// transition advances the job through the state machine, re-reading the
// stored status first so a concurrent cancellation is respected between
// phases.
func (s *ImportService) transition(ctx context.Context, job *models.ImportJob, next models.JobStatus) error {
	current, err := s.importRepo.GetJob(ctx, job.ID)
	if err == nil {
		job.Status = current.Status
	}
	if !job.Status.CanTransitionTo(next) {
		return errJobHalted
	}
	if err := s.importRepo.UpdateJobStatus(ctx, job.ID, next, nil); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	job.Status = next
	return nil
}

// failJob marks the job failed with an operator-visible message and shapes
// the caller summary. Failures are results, not errors.
func (s *ImportService) failJob(ctx context.Context, job *models.ImportJob, message string) *ImportSummary {
	log.Error().Str("job_id", job.ID).Str("reason", message).Msg("import job failed")
	if !job.Status.IsTerminal() {
		if err := s.importRepo.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed, &message); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job failed")
		}
	}
	metrics.ImportJobsTotal.WithLabelValues(string(models.JobStatusFailed)).Inc()
	return &ImportSummary{JobID: job.ID, Message: message}
}

func (s *ImportService) halted(job *models.ImportJob) *ImportSummary {
	return &ImportSummary{JobID: job.ID, Message: fmt.Sprintf("job is %s", job.Status)}
}

// progressPercentage derives completion from the job counters.
func progressPercentage(job *models.ImportJob) float64 {
	if job.TotalRecords == 0 {
		return 0
	}
	return float64(job.ProcessedRecords) / float64(job.TotalRecords) * 100
}

// estimatedRemainingSeconds extrapolates from the observed per-record
// average. It returns nil unless the job is actively processing and has
// made measurable progress.
func estimatedRemainingSeconds(job *models.ImportJob, now time.Time) *float64 {
	switch job.Status {
	case models.JobStatusProcessing, models.JobStatusValidating,
		models.JobStatusTransforming, models.JobStatusInserting:
	default:
		return nil
	}
	if job.ProcessedRecords == 0 || job.TotalRecords == 0 {
		return nil
	}
	elapsed := now.Sub(job.CreatedAt).Seconds()
	if elapsed <= 0 {
		return nil
	}
	perRecord := elapsed / float64(job.ProcessedRecords)
	remaining := perRecord * float64(job.TotalRecords-job.ProcessedRecords)
	return &remaining
}

// parseRecords decodes an upload into rows numbered from 1. JSON must be an
// array of objects (a bare object becomes a one-element array); CSV rows
// are mapped through the lowercased header.
func parseRecords(content []byte, contentType string) ([]ImportRow, error) {
	switch strings.ToLower(contentType) {
	case "json":
		return parseJSONRecords(content)
	case "csv":
		return parseCSVRecords(content)
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
}

func parseJSONRecords(content []byte) ([]ImportRow, error) {
	var raw interface{}
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, err
	}

	var items []interface{}
	switch val := raw.(type) {
	case []interface{}:
		items = val
	case map[string]interface{}:
		items = []interface{}{val}
	default:
		return nil, fmt.Errorf("payload must be an array of records")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("payload contains no records")
	}

	rows := make([]ImportRow, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("element %d is not an object", i+1)
		}
		rows = append(rows, ImportRow{Number: i + 1, Record: models.RawRecord(obj)})
	}
	return rows, nil
}

func parseCSVRecords(content []byte) ([]ImportRow, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []ImportRow
	number := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", number+1, err)
		}
		number++
		record := make(models.RawRecord, len(header))
		for i, h := range header {
			if i < len(fields) {
				record[h] = fields[i]
			}
		}
		rows = append(rows, ImportRow{Number: number, Record: record})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data rows after header")
	}
	return rows, nil
}
