package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// fakePostalWriter remembers inserted codes so a re-import hits duplicates.
type fakePostalWriter struct {
	stored  map[string]bool
	upserts int
	failOn  string
}

func newFakePostalWriter() *fakePostalWriter {
	return &fakePostalWriter{stored: map[string]bool{}}
}

func (f *fakePostalWriter) InsertIgnoreDuplicate(_ context.Context, rec *models.PostalRecord) (bool, error) {
	if rec.Code == f.failOn {
		return false, errors.New("write failed")
	}
	if f.stored[rec.Code] {
		return false, nil
	}
	f.stored[rec.Code] = true
	return true, nil
}

func (f *fakePostalWriter) Upsert(_ context.Context, rec *models.PostalRecord) error {
	if rec.Code == f.failOn {
		return errors.New("write failed")
	}
	f.upserts++
	f.stored[rec.Code] = true
	return nil
}

// fakeBatchRecorder counts per-batch bookkeeping calls.
type fakeBatchRecorder struct {
	stats     []models.ImportStatistic
	processed int
}

func (f *fakeBatchRecorder) CreateStatistic(_ context.Context, stat *models.ImportStatistic) error {
	f.stats = append(f.stats, *stat)
	return nil
}

func (f *fakeBatchRecorder) AddJobCounters(_ context.Context, _ string, processed, _, _, _ int) error {
	f.processed += processed
	return nil
}

func postalRecords(codes ...string) []models.PostalRecord {
	records := make([]models.PostalRecord, 0, len(codes))
	for _, code := range codes {
		records = append(records, models.PostalRecord{Code: code, Province: "Jawa Barat"})
	}
	return records
}

func TestInsertBatchSkipStrategy(t *testing.T) {
	writer := newFakePostalWriter()
	recorder := &fakeBatchRecorder{}
	inserter := NewBatchInserter(writer, recorder, 0)

	records := postalRecords("40111", "40112", "40113")
	result, err := inserter.InsertBatch(context.Background(), "job-1", records, 2, models.DuplicateSkip)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if result.Successful != 3 || result.Failed != 0 || result.Duplicates != 0 {
		t.Errorf("first import = %+v, want 3 successful", result)
	}

	// Re-importing the same file must count every record as a duplicate.
	result, err = inserter.InsertBatch(context.Background(), "job-2", records, 2, models.DuplicateSkip)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if result.Successful != 0 || result.Duplicates != 3 {
		t.Errorf("re-import = %+v, want 3 duplicates", result)
	}
}

func TestInsertBatchErrorStrategy(t *testing.T) {
	writer := newFakePostalWriter()
	writer.stored["40112"] = true
	inserter := NewBatchInserter(writer, &fakeBatchRecorder{}, 0)

	result, err := inserter.InsertBatch(context.Background(), "job-1", postalRecords("40111", "40112"), 10, models.DuplicateError)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if result.Successful != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want 1 successful 1 failed", result)
	}
}

func TestInsertBatchUpdateStrategy(t *testing.T) {
	writer := newFakePostalWriter()
	writer.stored["40111"] = true
	inserter := NewBatchInserter(writer, &fakeBatchRecorder{}, 0)

	result, err := inserter.InsertBatch(context.Background(), "job-1", postalRecords("40111", "40112"), 10, models.DuplicateUpdate)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if result.Successful != 2 || result.Failed != 0 {
		t.Errorf("result = %+v, want 2 successful", result)
	}
	if writer.upserts != 2 {
		t.Errorf("upserts = %d, want 2", writer.upserts)
	}
}

func TestInsertBatchRecordFailureDoesNotAbort(t *testing.T) {
	writer := newFakePostalWriter()
	writer.failOn = "40112"
	inserter := NewBatchInserter(writer, &fakeBatchRecorder{}, 0)

	result, err := inserter.InsertBatch(context.Background(), "job-1", postalRecords("40111", "40112", "40113"), 10, models.DuplicateSkip)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if result.Successful != 2 || result.Failed != 1 {
		t.Errorf("result = %+v, want 2 successful 1 failed", result)
	}
}

func TestInsertBatchSlicingAndBookkeeping(t *testing.T) {
	writer := newFakePostalWriter()
	recorder := &fakeBatchRecorder{}
	inserter := NewBatchInserter(writer, recorder, 0)

	records := postalRecords("40111", "40112", "40113", "40114", "40115")
	if _, err := inserter.InsertBatch(context.Background(), "job-1", records, 2, models.DuplicateSkip); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	// 5 records at batch size 2 means 3 slices, each with its own statistic.
	if len(recorder.stats) != 3 {
		t.Errorf("statistics = %d, want 3", len(recorder.stats))
	}
	if recorder.processed != 5 {
		t.Errorf("processed counter = %d, want 5", recorder.processed)
	}
	for _, stat := range recorder.stats {
		if stat.ProcessingPhase != "inserting" || stat.OperationType != "batch_insert" {
			t.Errorf("unexpected statistic shape: %+v", stat)
		}
	}
}

func TestInsertBatchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inserter := NewBatchInserter(newFakePostalWriter(), &fakeBatchRecorder{}, 0)
	_, err := inserter.InsertBatch(ctx, "job-1", postalRecords("40111"), 1, models.DuplicateSkip)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
