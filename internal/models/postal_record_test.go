package models

import "testing"

func TestHasCoordinates(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		lat  *float64
		lon  *float64
		want bool
	}{
		{"both nil", nil, nil, false},
		{"latitude nil", nil, f(107.6), false},
		{"longitude nil", f(-6.9), nil, false},
		{"zero sentinel", f(0), f(0), false},
		{"real coordinates", f(-6.9175), f(107.6191), true},
		{"zero latitude only", f(0), f(107.6), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := PostalRecord{Latitude: tc.lat, Longitude: tc.lon}
			if got := rec.HasCoordinates(); got != tc.want {
				t.Errorf("HasCoordinates() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWireFormats(t *testing.T) {
	lat, lon, dist := -6.9175, 107.6191, 1.25
	rec := PostalRecord{
		Code:      "40111",
		Province:  "Jawa Barat",
		Regency:   "Kota Bandung",
		District:  "Sumur Bandung",
		Village:   "Braga",
		Latitude:  &lat,
		Longitude: &lon,
		Timezone:  "Asia/Jakarta",
	}

	legacy := rec.ToLegacy(&dist)
	if legacy.Code != "40111" || legacy.Distance == nil || *legacy.Distance != dist {
		t.Errorf("unexpected legacy shape: %+v", legacy)
	}

	modern := rec.ToModern(nil)
	if modern.PostalCode != "40111" || modern.DistanceKm != nil {
		t.Errorf("unexpected modern shape: %+v", modern)
	}

	// Both shapes carry the same underlying data.
	if legacy.Village != modern.Village || legacy.Province != modern.Province {
		t.Error("legacy and modern shapes must agree on record data")
	}
}
