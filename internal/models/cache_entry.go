package models

import "time"

// CacheEntry is one durable cached query result. A row whose ExpiresAt has
// passed is functionally absent even if physically still stored.
type CacheEntry struct {
	CacheKey   string    `json:"cacheKey" db:"cache_key"`
	ResultData []byte    `json:"resultData" db:"result_data"`
	ExpiresAt  time.Time `json:"expiresAt" db:"expires_at"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
