package service

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// Accepted key aliases for the heterogeneous upload formats seen in the
// wild. Lookup is case-insensitive.
var (
	codeAliases      = []string{"code", "postal_code", "postalcode", "kode_pos", "kodepos", "zip", "zipcode"}
	provinceAliases  = []string{"province", "provinsi", "prov"}
	regencyAliases   = []string{"regency", "city", "kabupaten", "kota", "regency_city"}
	districtAliases  = []string{"district", "kecamatan"}
	villageAliases   = []string{"village", "kelurahan", "desa", "sub_district", "subdistrict"}
	latitudeAliases  = []string{"latitude", "lat"}
	longitudeAliases = []string{"longitude", "lng", "lon", "long"}
	elevationAliases = []string{"elevation", "altitude", "elev"}
	timezoneAliases  = []string{"timezone", "tz", "time_zone"}
)

// DefaultTimezone is the western-Indonesia zone applied when a record
// carries no recognizable timezone.
const DefaultTimezone = "Asia/Jakarta"

// timezoneByAlias resolves the common Indonesian timezone spellings.
var timezoneByAlias = map[string]string{
	"wib":   "Asia/Jakarta",
	"utc+7": "Asia/Jakarta",
	"gmt+7": "Asia/Jakarta",
	"+7":    "Asia/Jakarta",
	"wita":  "Asia/Makassar",
	"utc+8": "Asia/Makassar",
	"gmt+8": "Asia/Makassar",
	"+8":    "Asia/Makassar",
	"wit":   "Asia/Jayapura",
	"utc+9": "Asia/Jayapura",
	"gmt+9": "Asia/Jayapura",
	"+9":    "Asia/Jayapura",
}

// ImportRow is one parsed upload row with its original 1-based row number.
type ImportRow struct {
	Number int
	Record models.RawRecord
}

// DroppedRow reports a record the transformer could not normalize.
type DroppedRow struct {
	Number int
	Record models.RawRecord
	Reason string
}

// RecordTransformer normalizes raw heterogeneous records into the canonical
// shape. Transformation is best-effort: an unrecoverable record is dropped
// and reported, never aborts the batch.
type RecordTransformer struct {
	titleCaser cases.Caser
}

// NewRecordTransformer creates a new RecordTransformer.
func NewRecordTransformer() *RecordTransformer {
	return &RecordTransformer{titleCaser: cases.Title(language.Indonesian)}
}

// Transform normalizes rows into canonical records and reports every row it
// had to drop.
func (t *RecordTransformer) Transform(rows []ImportRow) ([]models.PostalRecord, []DroppedRow) {
	records := make([]models.PostalRecord, 0, len(rows))
	var dropped []DroppedRow

	for _, row := range rows {
		rec, err := t.transformOne(row.Record)
		if err != nil {
			dropped = append(dropped, DroppedRow{Number: row.Number, Record: row.Record, Reason: err.Error()})
			continue
		}
		records = append(records, *rec)
	}
	return records, dropped
}

func (t *RecordTransformer) transformOne(raw models.RawRecord) (*models.PostalRecord, error) {
	code := nonDigitRe.ReplaceAllString(extractField(raw, codeAliases), "")
	if len(code) != 5 {
		return nil, fmt.Errorf("postal code does not reduce to 5 digits")
	}

	rec := &models.PostalRecord{
		Code:     code,
		Province: t.normalizeName(extractField(raw, provinceAliases)),
		Regency:  t.normalizeName(extractField(raw, regencyAliases)),
		District: t.normalizeName(extractField(raw, districtAliases)),
		Village:  t.normalizeName(extractField(raw, villageAliases)),
		Timezone: resolveTimezone(extractField(raw, timezoneAliases)),
	}

	// Coordinates default to the (0,0) sentinel, which the geospatial engine
	// excludes at query time.
	lat := parseFloatOrZero(extractField(raw, latitudeAliases))
	lon := parseFloatOrZero(extractField(raw, longitudeAliases))
	rec.Latitude = &lat
	rec.Longitude = &lon

	if rawElev := extractField(raw, elevationAliases); rawElev != "" {
		if elev, err := strconv.ParseFloat(strings.TrimSpace(rawElev), 64); err == nil && isFinite(elev) {
			rec.Elevation = &elev
		}
	}

	return rec, nil
}

// normalizeName trims and title-cases an administrative name.
func (t *RecordTransformer) normalizeName(s string) string {
	return t.titleCaser.String(strings.ToLower(strings.TrimSpace(s)))
}

// resolveTimezone maps timezone spellings to a canonical zone identifier.
// Canonical identifiers pass through; anything unrecognized falls back to
// the western-Indonesia default.
func resolveTimezone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultTimezone
	}
	if tz, ok := timezoneByAlias[strings.ToLower(raw)]; ok {
		return tz
	}
	if strings.HasPrefix(raw, "Asia/") {
		return raw
	}
	return DefaultTimezone
}

func parseFloatOrZero(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !isFinite(f) {
		return 0
	}
	return f
}

// extractField returns the first non-empty value among the alias keys,
// matching keys case-insensitively.
func extractField(record models.RawRecord, aliases []string) string {
	for key, value := range record {
		lower := strings.ToLower(strings.TrimSpace(key))
		for _, alias := range aliases {
			if lower == alias {
				if s := stringValue(value); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// stringValue renders a raw JSON/CSV cell as a string. Floats that carry an
// integral value print without an exponent or trailing zeros so numeric
// postal codes survive JSON decoding.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
