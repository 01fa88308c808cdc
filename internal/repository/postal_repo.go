package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// PostalRepository handles database operations for canonical postal records.
type PostalRepository struct {
	db *sqlx.DB
}

// NewPostalRepository creates a new PostalRepository.
func NewPostalRepository(db *sqlx.DB) *PostalRepository {
	return &PostalRepository{db: db}
}

const postalColumns = `id, code, province, regency, district, village,
	latitude, longitude, elevation, timezone, created_at, updated_at`

// GetByCode returns the record for a postal code, or sql.ErrNoRows.
func (r *PostalRepository) GetByCode(ctx context.Context, code string) (*models.PostalRecord, error) {
	const q = `SELECT ` + postalColumns + ` FROM postal_records WHERE code = $1 LIMIT 1`

	var rec models.PostalRecord
	if err := r.db.GetContext(ctx, &rec, q, code); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ExistsByCode reports whether a record with the given postal code exists.
func (r *PostalRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM postal_records WHERE code = $1)`, code,
	).Scan(&exists)
	return exists, err
}

// InsertIgnoreDuplicate inserts a record unless its postal code is already
// present. Returns true when a row was written. The conflict is resolved in
// a single statement so concurrent imports cannot race the existence check.
func (r *PostalRepository) InsertIgnoreDuplicate(ctx context.Context, rec *models.PostalRecord) (bool, error) {
	const q = `
        INSERT INTO postal_records (
            code, province, regency, district, village,
            latitude, longitude, elevation, timezone, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
        ON CONFLICT (code) DO NOTHING`

	res, err := r.db.ExecContext(ctx, q,
		rec.Code, rec.Province, rec.Regency, rec.District, rec.Village,
		rec.Latitude, rec.Longitude, rec.Elevation, rec.Timezone,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Upsert inserts a record or, when its postal code already exists, updates
// the existing row in place.
func (r *PostalRepository) Upsert(ctx context.Context, rec *models.PostalRecord) error {
	const q = `
        INSERT INTO postal_records (
            code, province, regency, district, village,
            latitude, longitude, elevation, timezone, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
        ON CONFLICT (code) DO UPDATE SET
            province   = EXCLUDED.province,
            regency    = EXCLUDED.regency,
            district   = EXCLUDED.district,
            village    = EXCLUDED.village,
            latitude   = EXCLUDED.latitude,
            longitude  = EXCLUDED.longitude,
            elevation  = EXCLUDED.elevation,
            timezone   = EXCLUDED.timezone,
            updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, q,
		rec.Code, rec.Province, rec.Regency, rec.District, rec.Village,
		rec.Latitude, rec.Longitude, rec.Elevation, rec.Timezone,
	)
	return err
}

// Search returns records whose code or administrative names contain the
// query, case-insensitively, capped at limit.
func (r *PostalRepository) Search(ctx context.Context, query string, limit int) ([]models.PostalRecord, error) {
	const q = `
        SELECT ` + postalColumns + `
        FROM postal_records
        WHERE code ILIKE $1
           OR province ILIKE $1
           OR regency ILIKE $1
           OR district ILIKE $1
           OR village ILIKE $1
        ORDER BY code
        LIMIT $2`

	var records []models.PostalRecord
	if err := r.db.SelectContext(ctx, &records, q, "%"+query+"%", limit); err != nil {
		return nil, err
	}
	return records, nil
}

// ListWithCoordinates returns every record holding a usable coordinate pair.
// The (0,0) sentinel written by the transformer for unknown locations is
// excluded.
func (r *PostalRepository) ListWithCoordinates(ctx context.Context) ([]models.PostalRecord, error) {
	const q = `
        SELECT ` + postalColumns + `
        FROM postal_records
        WHERE latitude IS NOT NULL
          AND longitude IS NOT NULL
          AND NOT (latitude = 0 AND longitude = 0)`

	var records []models.PostalRecord
	if err := r.db.SelectContext(ctx, &records, q); err != nil {
		return nil, err
	}
	return records, nil
}

// CountAll returns the total number of canonical records.
func (r *PostalRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM postal_records`).Scan(&count)
	return count, err
}

// IsNotFound reports whether err is the driver's no-rows sentinel.
func IsNotFound(err error) bool {
	return err == sql.ErrNoRows
}
