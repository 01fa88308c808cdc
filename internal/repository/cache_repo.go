package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// CacheRepository handles the durable query-result cache stored as ordinary
// table rows with time-based expiry.
type CacheRepository struct {
	db *sqlx.DB
}

// NewCacheRepository creates a new CacheRepository.
func NewCacheRepository(db *sqlx.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get returns the entry for key, or (nil, nil) when the key is absent or
// expired. Expired rows are filtered on read; physical removal is the purge
// worker's job.
func (r *CacheRepository) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	const q = `
        SELECT cache_key, result_data, expires_at, created_at
        FROM api_cache
        WHERE cache_key = $1 AND expires_at > NOW()
        LIMIT 1`

	var entry models.CacheEntry
	if err := r.db.GetContext(ctx, &entry, q, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Set stores (or replaces) the entry for key with the given expiry.
func (r *CacheRepository) Set(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	const q = `
        INSERT INTO api_cache (cache_key, result_data, expires_at, created_at)
        VALUES ($1,$2,$3,NOW())
        ON CONFLICT (cache_key) DO UPDATE SET
            result_data = EXCLUDED.result_data,
            expires_at  = EXCLUDED.expires_at,
            created_at  = NOW()`

	_, err := r.db.ExecContext(ctx, q, key, data, expiresAt)
	return err
}

// PurgeExpired deletes rows past their expiry and returns the count removed.
func (r *CacheRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
