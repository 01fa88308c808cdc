package service

import (
	"context"
	"sort"

	"github.com/umahmood/haversine"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// NearbyLimit caps how many matches a nearby query returns.
const NearbyLimit = 50

// coordinateLister is the slice of the postal repository the engine needs.
type coordinateLister interface {
	ListWithCoordinates(ctx context.Context) ([]models.PostalRecord, error)
}

// GeoService computes great-circle distances between a query point and
// every stored record with a usable coordinate. Coordinate bounds are the
// caller-facing layer's concern; this engine only computes distance.
type GeoService struct {
	postalRepo coordinateLister
}

// NewGeoService creates a new GeoService.
func NewGeoService(postalRepo coordinateLister) *GeoService {
	return &GeoService{postalRepo: postalRepo}
}

// Detect returns the single nearest record within radiusKm, or nil when no
// record is in range. A nil result is a normal outcome, not an error.
func (s *GeoService) Detect(ctx context.Context, lat, lon, radiusKm float64) (*models.GeoMatch, error) {
	matches, err := s.matchesWithin(ctx, lat, lon, radiusKm)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// Nearby returns up to NearbyLimit records within radiusKm ordered
// nearest-first.
func (s *GeoService) Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]models.GeoMatch, error) {
	matches, err := s.matchesWithin(ctx, lat, lon, radiusKm)
	if err != nil {
		return nil, err
	}
	if len(matches) > NearbyLimit {
		matches = matches[:NearbyLimit]
	}
	return matches, nil
}

func (s *GeoService) matchesWithin(ctx context.Context, lat, lon, radiusKm float64) ([]models.GeoMatch, error) {
	records, err := s.postalRepo.ListWithCoordinates(ctx)
	if err != nil {
		return nil, err
	}

	origin := haversine.Coord{Lat: lat, Lon: lon}
	var matches []models.GeoMatch
	for i := range records {
		rec := &records[i]
		if !rec.HasCoordinates() {
			continue
		}
		_, km := haversine.Distance(origin, haversine.Coord{Lat: *rec.Latitude, Lon: *rec.Longitude})
		if km <= radiusKm {
			matches = append(matches, models.GeoMatch{Record: *rec, DistanceKm: km})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	return matches, nil
}
