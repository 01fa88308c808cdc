package service

import (
	"testing"
	"time"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

func TestParseJSONRecords(t *testing.T) {
	rows, err := parseRecords([]byte(`[{"code":"40111"},{"code":"40112"}]`), "json")
	if err != nil {
		t.Fatalf("parseRecords: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Number != 1 || rows[1].Number != 2 {
		t.Errorf("rows must be numbered from 1: %d, %d", rows[0].Number, rows[1].Number)
	}
	if rows[0].Record["code"] != "40111" {
		t.Errorf("row 1 code = %v", rows[0].Record["code"])
	}
}

func TestParseJSONBareObject(t *testing.T) {
	rows, err := parseRecords([]byte(`{"code":"40111"}`), "json")
	if err != nil {
		t.Fatalf("parseRecords: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("bare object should become one row, got %d", len(rows))
	}
}

func TestParseJSONRejectsNonObjects(t *testing.T) {
	if _, err := parseRecords([]byte(`[1,2,3]`), "json"); err == nil {
		t.Error("array of scalars should fail")
	}
	if _, err := parseRecords([]byte(`[]`), "json"); err == nil {
		t.Error("empty array should fail")
	}
}

func TestParseCSVRecords(t *testing.T) {
	csvData := "Code,Province,Regency,District,Village\n40111,Jawa Barat,Kota Bandung,Sumur Bandung,Braga\n40112,Jawa Barat,Kota Bandung,Sumur Bandung,Merdeka\n"

	rows, err := parseRecords([]byte(csvData), "csv")
	if err != nil {
		t.Fatalf("parseRecords: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Header keys are lowercased for alias matching.
	if rows[0].Record["code"] != "40111" {
		t.Errorf("row 1 code = %v, want 40111", rows[0].Record["code"])
	}
	if rows[1].Record["village"] != "Merdeka" {
		t.Errorf("row 2 village = %v, want Merdeka", rows[1].Record["village"])
	}
}

func TestParseRecordsUnsupportedType(t *testing.T) {
	if _, err := parseRecords([]byte(`x`), "xml"); err == nil {
		t.Error("unsupported content type should fail")
	}
}

func TestProgressPercentage(t *testing.T) {
	job := &models.ImportJob{TotalRecords: 0}
	if got := progressPercentage(job); got != 0 {
		t.Errorf("zero-total progress = %f, want 0", got)
	}

	job = &models.ImportJob{TotalRecords: 200, ProcessedRecords: 50}
	if got := progressPercentage(job); got != 25 {
		t.Errorf("progress = %f, want 25", got)
	}
}

func TestEstimatedRemainingSeconds(t *testing.T) {
	now := time.Now()

	// 100 of 400 records in 10 seconds: 0.1 s/record, 300 left, 30 s remaining.
	job := &models.ImportJob{
		Status:           models.JobStatusInserting,
		TotalRecords:     400,
		ProcessedRecords: 100,
		CreatedAt:        now.Add(-10 * time.Second),
	}
	remaining := estimatedRemainingSeconds(job, now)
	if remaining == nil {
		t.Fatal("expected an estimate for an active job")
	}
	if *remaining < 29 || *remaining > 31 {
		t.Errorf("remaining = %f, want ~30", *remaining)
	}

	// No estimate before any progress.
	job.ProcessedRecords = 0
	if estimatedRemainingSeconds(job, now) != nil {
		t.Error("no estimate should be produced with zero progress")
	}

	// No estimate once the job is terminal.
	job.ProcessedRecords = 100
	job.Status = models.JobStatusCompleted
	if estimatedRemainingSeconds(job, now) != nil {
		t.Error("no estimate should be produced for a terminal job")
	}

	// Nor before the pipeline starts.
	job.Status = models.JobStatusPending
	if estimatedRemainingSeconds(job, now) != nil {
		t.Error("no estimate should be produced for a pending job")
	}
}
