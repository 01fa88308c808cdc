package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestInsertIgnoreDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostalRepository(db)
	rec := &models.PostalRecord{Code: "40111", Province: "Jawa Barat"}

	// Fresh code: one row written.
	mock.ExpectExec("INSERT INTO postal_records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	inserted, err := repo.InsertIgnoreDuplicate(context.Background(), rec)
	if err != nil {
		t.Fatalf("InsertIgnoreDuplicate: %v", err)
	}
	if !inserted {
		t.Error("expected inserted=true for a fresh code")
	}

	// Conflicting code: DO NOTHING reports zero rows.
	mock.ExpectExec("INSERT INTO postal_records").
		WillReturnResult(sqlmock.NewResult(0, 0))
	inserted, err = repo.InsertIgnoreDuplicate(context.Background(), rec)
	if err != nil {
		t.Fatalf("InsertIgnoreDuplicate: %v", err)
	}
	if inserted {
		t.Error("expected inserted=false on conflict")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostalRepository(db)

	mock.ExpectExec("ON CONFLICT \\(code\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.PostalRecord{Code: "40111"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestExistsByCode(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostalRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("40111").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByCode(context.Background(), "40111")
	if err != nil {
		t.Fatalf("ExistsByCode: %v", err)
	}
	if !exists {
		t.Error("expected exists=true")
	}
}

func TestGetByCodeNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostalRepository(db)

	mock.ExpectQuery("FROM postal_records WHERE code").
		WithArgs("99999").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByCode(context.Background(), "99999")
	if !IsNotFound(err) {
		t.Errorf("expected no-rows sentinel, got %v", err)
	}
}

func TestListWithCoordinatesExcludesSentinel(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostalRepository(db)

	lat, lon := -6.9175, 107.6191
	rows := sqlmock.NewRows([]string{
		"id", "code", "province", "regency", "district", "village",
		"latitude", "longitude", "elevation", "timezone", "created_at", "updated_at",
	}).AddRow(1, "40111", "Jawa Barat", "Kota Bandung", "Sumur Bandung", "Braga",
		lat, lon, nil, "Asia/Jakarta", time.Now(), time.Now())

	// The statement itself must exclude NULL and (0,0) rows.
	mock.ExpectQuery(`NOT \(latitude = 0 AND longitude = 0\)`).WillReturnRows(rows)

	records, err := repo.ListWithCoordinates(context.Background())
	if err != nil {
		t.Fatalf("ListWithCoordinates: %v", err)
	}
	if len(records) != 1 || records[0].Code != "40111" {
		t.Errorf("unexpected records: %+v", records)
	}
}
