package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the import job lifecycle state.
type JobStatus string

const (
	JobStatusPending      JobStatus = "pending"
	JobStatusProcessing   JobStatus = "processing"
	JobStatusValidating   JobStatus = "validating"
	JobStatusTransforming JobStatus = "transforming"
	JobStatusInserting    JobStatus = "inserting"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// jobStatusOrder is the linear processing sequence. Failure and cancellation
// are reachable from any non-terminal state and handled separately.
var jobStatusOrder = map[JobStatus]JobStatus{
	JobStatusPending:      JobStatusProcessing,
	JobStatusProcessing:   JobStatusValidating,
	JobStatusValidating:   JobStatusTransforming,
	JobStatusTransforming: JobStatusInserting,
	JobStatusInserting:    JobStatusCompleted,
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobStatusFailed || next == JobStatusCancelled {
		return true
	}
	return jobStatusOrder[s] == next
}

// DuplicateStrategy is the configured policy for records colliding on
// postal code during import.
type DuplicateStrategy string

const (
	DuplicateSkip   DuplicateStrategy = "skip"
	DuplicateUpdate DuplicateStrategy = "update"
	DuplicateError  DuplicateStrategy = "error"
)

// Valid reports whether d is one of the known strategies.
func (d DuplicateStrategy) Valid() bool {
	switch d {
	case DuplicateSkip, DuplicateUpdate, DuplicateError:
		return true
	}
	return false
}

// ImportJob is a single bulk-import execution with its own lifecycle,
// counters and configuration. Mutated only through the import service.
type ImportJob struct {
	ID               string     `json:"id" db:"id"`
	Filename         string     `json:"filename" db:"filename"`
	FileSize         int64      `json:"fileSize" db:"file_size"`
	ContentType      string     `json:"contentType" db:"content_type"`
	Status           JobStatus  `json:"status" db:"status"`
	TotalRecords     int        `json:"totalRecords" db:"total_records"`
	ProcessedRecords int        `json:"processedRecords" db:"processed_records"`
	SuccessRecords   int        `json:"successfulRecords" db:"successful_records"`
	FailedRecords    int        `json:"failedRecords" db:"failed_records"`
	DuplicateRecords int        `json:"duplicateRecords" db:"duplicate_records"`
	ProcessingTimeMs int64      `json:"processingTimeMs" db:"processing_time_ms"`
	ErrorMessage     *string    `json:"errorMessage" db:"error_message"`
	CreatedBy        *string    `json:"createdBy" db:"created_by"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
	CompletedAt      *time.Time `json:"completedAt" db:"completed_at"`
}

// ImportConfiguration holds per-job import tuning. Created alongside the
// job, immutable thereafter.
type ImportConfiguration struct {
	JobID               string            `json:"jobId" db:"job_id"`
	DuplicateStrategy   DuplicateStrategy `json:"duplicateStrategy" db:"duplicate_strategy"`
	BatchSize           int               `json:"batchSize" db:"batch_size"`
	ValidateCoordinates bool              `json:"validateCoordinates" db:"validate_coordinates"`
	SkipInvalidRecords  bool              `json:"skipInvalidRecords" db:"skip_invalid_records"`
	NotificationEmail   *string           `json:"notificationEmail" db:"notification_email"`
	CustomRules         json.RawMessage   `json:"customValidationRules" db:"custom_validation_rules"`
}

// DefaultImportConfiguration returns the configuration applied when the
// caller provides no overrides.
func DefaultImportConfiguration() ImportConfiguration {
	return ImportConfiguration{
		DuplicateStrategy:   DuplicateSkip,
		BatchSize:           1000,
		ValidateCoordinates: true,
		SkipInvalidRecords:  true,
	}
}

// ValidationSeverity grades a validation finding.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationError is a single finding for one raw record field.
type ValidationError struct {
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Field    string             `json:"field,omitempty"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult is the validator's verdict for one raw record.
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  []ValidationError `json:"errors"`
}

// HasErrors reports whether any finding is error-severity.
func (v *ValidationResult) HasErrors() bool {
	for _, e := range v.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ImportValidationResult is the persisted audit row for a rejected record.
type ImportValidationResult struct {
	ID         int                `json:"id" db:"id"`
	JobID      string             `json:"jobId" db:"job_id"`
	RowNumber  int                `json:"rowNumber" db:"row_number"`
	RecordData json.RawMessage    `json:"recordData" db:"record_data"`
	Errors     json.RawMessage    `json:"validationErrors" db:"validation_errors"`
	Severity   ValidationSeverity `json:"severity" db:"severity"`
	CreatedAt  time.Time          `json:"createdAt" db:"created_at"`
}

// ImportStatistic is a per-batch timing sample, retained 30 days.
type ImportStatistic struct {
	ID              int       `json:"id" db:"id"`
	JobID           string    `json:"jobId" db:"job_id"`
	ProcessingPhase string    `json:"processingPhase" db:"processing_phase"`
	OperationType   string    `json:"operationType" db:"operation_type"`
	RecordsCount    int       `json:"recordsCount" db:"records_count"`
	ExecutionTimeMs int64     `json:"executionTimeMs" db:"execution_time_ms"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// RawRecord is one parsed but not yet normalized import row.
type RawRecord map[string]interface{}
