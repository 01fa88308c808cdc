package models

import "testing"

func TestJobStatusLinearOrder(t *testing.T) {
	order := []JobStatus{
		JobStatusPending,
		JobStatusProcessing,
		JobStatusValidating,
		JobStatusTransforming,
		JobStatusInserting,
		JobStatusCompleted,
	}

	for i := 0; i < len(order)-1; i++ {
		if !order[i].CanTransitionTo(order[i+1]) {
			t.Errorf("%s -> %s should be legal", order[i], order[i+1])
		}
	}

	// Skipping a phase is never legal.
	if JobStatusPending.CanTransitionTo(JobStatusValidating) {
		t.Error("pending -> validating must be illegal")
	}
	if JobStatusProcessing.CanTransitionTo(JobStatusCompleted) {
		t.Error("processing -> completed must be illegal")
	}

	// Moving backwards is never legal.
	if JobStatusInserting.CanTransitionTo(JobStatusValidating) {
		t.Error("inserting -> validating must be illegal")
	}
}

func TestJobStatusFailureAndCancellation(t *testing.T) {
	active := []JobStatus{
		JobStatusPending, JobStatusProcessing, JobStatusValidating,
		JobStatusTransforming, JobStatusInserting,
	}
	for _, s := range active {
		if !s.CanTransitionTo(JobStatusFailed) {
			t.Errorf("%s -> failed should be legal", s)
		}
		if !s.CanTransitionTo(JobStatusCancelled) {
			t.Errorf("%s -> cancelled should be legal", s)
		}
	}
}

func TestJobStatusTerminalStatesAreFinal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	all := []JobStatus{
		JobStatusPending, JobStatusProcessing, JobStatusValidating,
		JobStatusTransforming, JobStatusInserting,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled,
	}

	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		for _, next := range all {
			if s.CanTransitionTo(next) {
				t.Errorf("%s -> %s must be illegal", s, next)
			}
		}
	}
}

func TestDuplicateStrategyValid(t *testing.T) {
	for _, s := range []DuplicateStrategy{DuplicateSkip, DuplicateUpdate, DuplicateError} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if DuplicateStrategy("merge").Valid() {
		t.Error("unknown strategy should be invalid")
	}
	if DuplicateStrategy("").Valid() {
		t.Error("empty strategy should be invalid")
	}
}

func TestValidationResultHasErrors(t *testing.T) {
	warnOnly := ValidationResult{Errors: []ValidationError{
		{Code: "COORDINATES_OUT_OF_RANGE", Severity: SeverityWarning},
	}}
	if warnOnly.HasErrors() {
		t.Error("warnings alone must not count as errors")
	}

	mixed := ValidationResult{Errors: []ValidationError{
		{Code: "FIELD_TOO_LONG", Severity: SeverityWarning},
		{Code: "INVALID_POSTAL_CODE", Severity: SeverityError},
	}}
	if !mixed.HasErrors() {
		t.Error("an error-severity finding must count")
	}
}
