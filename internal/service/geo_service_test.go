package service

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// fakeCoordinateLister serves a fixed record set.
type fakeCoordinateLister struct {
	records []models.PostalRecord
	err     error
}

func (f *fakeCoordinateLister) ListWithCoordinates(_ context.Context) ([]models.PostalRecord, error) {
	return f.records, f.err
}

func coordRecord(code string, lat, lon float64) models.PostalRecord {
	return models.PostalRecord{
		Code:      code,
		Province:  "Jawa Barat",
		Regency:   "Kota Bandung",
		District:  "Sumur Bandung",
		Village:   "Braga",
		Latitude:  &lat,
		Longitude: &lon,
	}
}

// Around Bandung city center (-6.9175, 107.6191).
func bandungRecords() []models.PostalRecord {
	return []models.PostalRecord{
		coordRecord("40111", -6.9175, 107.6191), // at the origin
		coordRecord("40112", -6.9275, 107.6291), // ~1.6 km away
		coordRecord("40241", -6.9629, 107.6327), // ~5.2 km away
		coordRecord("16110", -6.5950, 106.8166), // Bogor, ~95 km away
	}
}

func TestDetectNearest(t *testing.T) {
	geo := NewGeoService(&fakeCoordinateLister{records: bandungRecords()})

	match, err := geo.Detect(context.Background(), -6.9180, 107.6195, 5)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.Record.Code != "40111" {
		t.Errorf("nearest = %s, want 40111", match.Record.Code)
	}
	if match.DistanceKm < 0 || match.DistanceKm > 0.2 {
		t.Errorf("distance = %f km, want under 0.2", match.DistanceKm)
	}
}

func TestDetectNoneInRadius(t *testing.T) {
	geo := NewGeoService(&fakeCoordinateLister{records: bandungRecords()})

	// Far out in the Java Sea; nothing within 10 km.
	match, err := geo.Detect(context.Background(), -5.0, 110.0, 10)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if match != nil {
		t.Errorf("expected no match, got %s at %f km", match.Record.Code, match.DistanceKm)
	}
}

func TestDetectExcludesSentinelCoordinates(t *testing.T) {
	zero := 0.0
	records := []models.PostalRecord{
		{Code: "99999", Latitude: &zero, Longitude: &zero},
	}
	geo := NewGeoService(&fakeCoordinateLister{records: records})

	// Query right at (0,0): the sentinel record must still be invisible.
	match, err := geo.Detect(context.Background(), 0, 0, 1)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if match != nil {
		t.Error("records with the (0,0) sentinel must never match")
	}
}

func TestNearbySortedAscending(t *testing.T) {
	geo := NewGeoService(&fakeCoordinateLister{records: bandungRecords()})

	matches, err := geo.Nearby(context.Background(), -6.9175, 107.6191, 10)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches within 10 km, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].DistanceKm < matches[i-1].DistanceKm {
			t.Errorf("matches not sorted ascending at %d: %f < %f", i, matches[i].DistanceKm, matches[i-1].DistanceKm)
		}
	}
	if matches[0].Record.Code != "40111" {
		t.Errorf("closest = %s, want 40111", matches[0].Record.Code)
	}
}

func TestNearbyLimit(t *testing.T) {
	records := make([]models.PostalRecord, 0, NearbyLimit+20)
	for i := 0; i < NearbyLimit+20; i++ {
		records = append(records, coordRecord(
			fmt.Sprintf("%05d", 40000+i),
			-6.9175+float64(i)*0.0001,
			107.6191,
		))
	}
	geo := NewGeoService(&fakeCoordinateLister{records: records})

	matches, err := geo.Nearby(context.Background(), -6.9175, 107.6191, 50)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(matches) != NearbyLimit {
		t.Errorf("expected %d matches, got %d", NearbyLimit, len(matches))
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := coordRecord("40111", -6.9175, 107.6191)
	b := coordRecord("16110", -6.5950, 106.8166)

	geoA := NewGeoService(&fakeCoordinateLister{records: []models.PostalRecord{b}})
	geoB := NewGeoService(&fakeCoordinateLister{records: []models.PostalRecord{a}})

	matchA, err := geoA.Detect(context.Background(), *a.Latitude, *a.Longitude, 200)
	if err != nil || matchA == nil {
		t.Fatalf("Detect A->B: %v %v", matchA, err)
	}
	matchB, err := geoB.Detect(context.Background(), *b.Latitude, *b.Longitude, 200)
	if err != nil || matchB == nil {
		t.Fatalf("Detect B->A: %v %v", matchB, err)
	}

	if diff := math.Abs(matchA.DistanceKm - matchB.DistanceKm); diff > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", matchA.DistanceKm, matchB.DistanceKm)
	}
	// Bandung to Bogor is roughly 95 km.
	if matchA.DistanceKm < 80 || matchA.DistanceKm > 110 {
		t.Errorf("Bandung-Bogor distance = %f km, expected ~95", matchA.DistanceKm)
	}
}
