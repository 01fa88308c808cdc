package models

import "time"

// PostalRecord is the canonical, durable representation of one postal-code
// entry. Latitude/longitude may be NULL; rows without both coordinates are
// invisible to the geospatial engine.
type PostalRecord struct {
	ID        int       `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Province  string    `json:"province" db:"province"`
	Regency   string    `json:"regency" db:"regency"`
	District  string    `json:"district" db:"district"`
	Village   string    `json:"village" db:"village"`
	Latitude  *float64  `json:"latitude" db:"latitude"`
	Longitude *float64  `json:"longitude" db:"longitude"`
	Elevation *float64  `json:"elevation" db:"elevation"`
	Timezone  string    `json:"timezone" db:"timezone"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasCoordinates reports whether the record carries a usable coordinate.
// (0,0) is the transformer's "no coordinate" sentinel and does not count.
func (r *PostalRecord) HasCoordinates() bool {
	if r.Latitude == nil || r.Longitude == nil {
		return false
	}
	return *r.Latitude != 0 || *r.Longitude != 0
}

// LegacyPostalResponse is the original kodepos wire shape served on the
// unversioned endpoints (/search, /detect, /nearby).
type LegacyPostalResponse struct {
	Code      string   `json:"code"`
	Village   string   `json:"village"`
	District  string   `json:"district"`
	Regency   string   `json:"regency"`
	Province  string   `json:"province"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Elevation *float64 `json:"elevation,omitempty"`
	Timezone  string   `json:"timezone,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
}

// ModernPostalResponse is the enveloped /v1 wire shape.
type ModernPostalResponse struct {
	PostalCode string   `json:"postalCode"`
	Province   string   `json:"province"`
	Regency    string   `json:"regency"`
	District   string   `json:"district"`
	Village    string   `json:"village"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Elevation  *float64 `json:"elevation,omitempty"`
	Timezone   string   `json:"timezone"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// ToLegacy formats a record for the legacy wire shape. distanceKm may be nil
// for non-geospatial results.
func (r *PostalRecord) ToLegacy(distanceKm *float64) LegacyPostalResponse {
	return LegacyPostalResponse{
		Code:      r.Code,
		Village:   r.Village,
		District:  r.District,
		Regency:   r.Regency,
		Province:  r.Province,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Elevation: r.Elevation,
		Timezone:  r.Timezone,
		Distance:  distanceKm,
	}
}

// ToModern formats a record for the /v1 wire shape.
func (r *PostalRecord) ToModern(distanceKm *float64) ModernPostalResponse {
	return ModernPostalResponse{
		PostalCode: r.Code,
		Province:   r.Province,
		Regency:    r.Regency,
		District:   r.District,
		Village:    r.Village,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Elevation:  r.Elevation,
		Timezone:   r.Timezone,
		DistanceKm: distanceKm,
	}
}

// GeoMatch pairs a record with its computed great-circle distance.
type GeoMatch struct {
	Record     PostalRecord `json:"record"`
	DistanceKm float64      `json:"distanceKm"`
}
