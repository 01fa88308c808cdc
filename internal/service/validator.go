package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/kodepos-id/kodepos_api/internal/models"
)

// Indonesian coordinate bounding box. Out-of-range coordinates are flagged
// but never reject a record.
const (
	MinLatitude  = -11.0
	MaxLatitude  = 6.0
	MinLongitude = 95.0
	MaxLongitude = 141.0
)

// Maximum administrative-name lengths. Exceeding them is a warning.
const (
	maxProvinceLen = 50
	maxNameLen     = 100
)

// Validation finding codes.
const (
	CodeMissingRequiredField    = "MISSING_REQUIRED_FIELD"
	CodeInvalidPostalCode       = "INVALID_POSTAL_CODE"
	CodeInvalidCoordinates      = "INVALID_COORDINATES"
	CodeCoordinatesOutOfRange   = "COORDINATES_OUT_OF_RANGE"
	CodeInvalidElevation        = "INVALID_ELEVATION"
	CodeFieldTooLong            = "FIELD_TOO_LONG"
	CodeDuplicateCode           = "DUPLICATE_CODE"
	CodeTransformDropped        = "TRANSFORM_DROPPED"
	CodeInvalidConfiguration    = "INVALID_CONFIGURATION"
	CodeInvalidFileFormat       = "INVALID_FILE_FORMAT"
	CodeInvalidNotificationMail = "INVALID_NOTIFICATION_EMAIL"
)

var (
	nonDigitRe = regexp.MustCompile(`\D`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// duplicateChecker is the slice of the postal repository the validator needs.
type duplicateChecker interface {
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// RecordValidator screens raw import records before transformation. Every
// check is evaluated (no short-circuit) so each failure is reported once.
type RecordValidator struct {
	postalRepo duplicateChecker
}

// NewRecordValidator creates a new RecordValidator.
func NewRecordValidator(postalRepo duplicateChecker) *RecordValidator {
	return &RecordValidator{postalRepo: postalRepo}
}

// requiredField pairs a canonical field name with its accepted aliases and
// maximum length.
var requiredFields = []struct {
	name    string
	aliases []string
	maxLen  int
}{
	{"province", provinceAliases, maxProvinceLen},
	{"regency", regencyAliases, maxNameLen},
	{"district", districtAliases, maxNameLen},
	{"village", villageAliases, maxNameLen},
}

// ValidateRecord checks one raw record. A record is valid iff it has zero
// error-severity findings; warnings never block processing. When jobID is
// non-empty and a postal code is present, a duplicate-existence probe runs
// against the canonical store. cfg may be nil, meaning default behavior
// (coordinate checks enabled).
func (v *RecordValidator) ValidateRecord(ctx context.Context, record models.RawRecord, rowNumber int, jobID string, cfg *models.ImportConfiguration) models.ValidationResult {
	var findings []models.ValidationError

	// Required administrative names.
	for _, f := range requiredFields {
		value := extractField(record, f.aliases)
		if strings.TrimSpace(value) == "" {
			findings = append(findings, models.ValidationError{
				Code:     CodeMissingRequiredField,
				Message:  fmt.Sprintf("field %q is required", f.name),
				Field:    f.name,
				Severity: models.SeverityError,
			})
		} else if utf8.RuneCountInString(value) > f.maxLen {
			findings = append(findings, models.ValidationError{
				Code:     CodeFieldTooLong,
				Message:  fmt.Sprintf("field %q exceeds %d characters", f.name, f.maxLen),
				Field:    f.name,
				Severity: models.SeverityWarning,
			})
		}
	}

	// Postal code must reduce to exactly 5 digits.
	rawCode := extractField(record, codeAliases)
	code := nonDigitRe.ReplaceAllString(rawCode, "")
	switch {
	case strings.TrimSpace(rawCode) == "":
		findings = append(findings, models.ValidationError{
			Code:     CodeMissingRequiredField,
			Message:  "postal code is required",
			Field:    "code",
			Severity: models.SeverityError,
		})
	case len(code) != 5:
		findings = append(findings, models.ValidationError{
			Code:     CodeInvalidPostalCode,
			Message:  fmt.Sprintf("postal code %q does not reduce to 5 digits", rawCode),
			Field:    "code",
			Severity: models.SeverityError,
		})
	}

	// Coordinates: numeric when both present, in-range is only a warning.
	checkCoordinates := cfg == nil || cfg.ValidateCoordinates
	rawLat := extractField(record, latitudeAliases)
	rawLon := extractField(record, longitudeAliases)
	if checkCoordinates && rawLat != "" && rawLon != "" {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(rawLon), 64)
		switch {
		case latErr != nil || lonErr != nil:
			findings = append(findings, models.ValidationError{
				Code:     CodeInvalidCoordinates,
				Message:  "latitude and longitude must be numeric",
				Field:    "coordinates",
				Severity: models.SeverityError,
			})
		case !isFinite(lat) || !isFinite(lon):
			// ParseFloat accepts "NaN" and "Inf" spellings; neither is a
			// coordinate.
			findings = append(findings, models.ValidationError{
				Code:     CodeInvalidCoordinates,
				Message:  "latitude and longitude must be finite numbers",
				Field:    "coordinates",
				Severity: models.SeverityError,
			})
		case lat < MinLatitude || lat > MaxLatitude || lon < MinLongitude || lon > MaxLongitude:
			findings = append(findings, models.ValidationError{
				Code:     CodeCoordinatesOutOfRange,
				Message:  fmt.Sprintf("coordinates (%v, %v) are outside Indonesia", lat, lon),
				Field:    "coordinates",
				Severity: models.SeverityWarning,
			})
		}
	}

	// Elevation, if present, must parse.
	if rawElev := extractField(record, elevationAliases); rawElev != "" {
		if _, err := strconv.ParseFloat(strings.TrimSpace(rawElev), 64); err != nil {
			findings = append(findings, models.ValidationError{
				Code:     CodeInvalidElevation,
				Message:  fmt.Sprintf("elevation %q is not numeric", rawElev),
				Field:    "elevation",
				Severity: models.SeverityWarning,
			})
		}
	}

	// Duplicate-existence probe, advisory only: the configured duplicate
	// strategy is applied at insertion time in a single conflict-resolving
	// statement, so this finding never blocks a record.
	if jobID != "" && len(code) == 5 && v.postalRepo != nil {
		exists, err := v.postalRepo.ExistsByCode(ctx, code)
		if err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Int("row", rowNumber).
				Msg("duplicate check failed")
		} else if exists {
			findings = append(findings, models.ValidationError{
				Code:     CodeDuplicateCode,
				Message:  fmt.Sprintf("postal code %s already exists", code),
				Field:    "code",
				Severity: models.SeverityWarning,
			})
		}
	}

	result := models.ValidationResult{Errors: findings}
	result.IsValid = !result.HasErrors()
	return result
}

// ValidateConfiguration checks an import-time configuration before the job
// is created.
func (v *RecordValidator) ValidateConfiguration(cfg *models.ImportConfiguration) models.ValidationResult {
	var findings []models.ValidationError

	if !cfg.DuplicateStrategy.Valid() {
		findings = append(findings, models.ValidationError{
			Code:     CodeInvalidConfiguration,
			Message:  fmt.Sprintf("duplicate strategy %q must be one of skip, update, error", cfg.DuplicateStrategy),
			Field:    "duplicate_strategy",
			Severity: models.SeverityError,
		})
	}
	if cfg.BatchSize < 1 || cfg.BatchSize > 10000 {
		findings = append(findings, models.ValidationError{
			Code:     CodeInvalidConfiguration,
			Message:  "batch size must be between 1 and 10000",
			Field:    "batch_size",
			Severity: models.SeverityError,
		})
	}
	if cfg.NotificationEmail != nil && *cfg.NotificationEmail != "" && !emailRe.MatchString(*cfg.NotificationEmail) {
		findings = append(findings, models.ValidationError{
			Code:     CodeInvalidNotificationMail,
			Message:  fmt.Sprintf("notification email %q is not valid", *cfg.NotificationEmail),
			Field:    "notification_email",
			Severity: models.SeverityError,
		})
	}

	result := models.ValidationResult{Errors: findings}
	result.IsValid = !result.HasErrors()
	return result
}

// ValidateFileFormat performs file-level validation before parsing. JSON
// must decode to a non-empty array (a bare object is accepted as a
// single-element array); CSV must carry data beyond its header and the
// header must contain all required field names case-insensitively.
func (v *RecordValidator) ValidateFileFormat(content []byte, contentType string) error {
	switch strings.ToLower(contentType) {
	case "json":
		var raw interface{}
		if err := json.Unmarshal(content, &raw); err != nil {
			return fmt.Errorf("%s: invalid JSON: %w", CodeInvalidFileFormat, err)
		}
		switch val := raw.(type) {
		case []interface{}:
			if len(val) == 0 {
				return fmt.Errorf("%s: JSON array is empty", CodeInvalidFileFormat)
			}
		case map[string]interface{}:
			// Single object: coerced to a one-element array at parse time.
		default:
			return fmt.Errorf("%s: JSON payload must be an array of records", CodeInvalidFileFormat)
		}
		return nil

	case "csv":
		reader := csv.NewReader(bytes.NewReader(content))
		header, err := reader.Read()
		if err != nil {
			return fmt.Errorf("%s: cannot read CSV header: %w", CodeInvalidFileFormat, err)
		}
		if _, err := reader.Read(); err != nil {
			return fmt.Errorf("%s: CSV has no data rows", CodeInvalidFileFormat)
		}
		headerSet := make(map[string]bool, len(header))
		for _, h := range header {
			headerSet[strings.ToLower(strings.TrimSpace(h))] = true
		}
		for _, f := range requiredFields {
			if !containsAny(headerSet, f.aliases) {
				return fmt.Errorf("%s: CSV header missing required field %q", CodeInvalidFileFormat, f.name)
			}
		}
		return nil

	default:
		return fmt.Errorf("%s: unsupported content type %q", CodeInvalidFileFormat, contentType)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func containsAny(set map[string]bool, keys []string) bool {
	for _, k := range keys {
		if set[k] {
			return true
		}
	}
	return false
}
