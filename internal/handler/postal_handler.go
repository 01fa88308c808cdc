package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kodepos-id/kodepos_api/internal/models"
	"github.com/kodepos-id/kodepos_api/internal/service"
	"github.com/kodepos-id/kodepos_api/internal/utils"
)

// DefaultRadiusKm is applied when a detect call omits the radius parameter.
const DefaultRadiusKm = 5.0

// MinQueryLength is the shortest accepted free-text search query.
const MinQueryLength = 2

// PostalHandler serves the read endpoints in both wire formats: the legacy
// unversioned shape and the modern /v1 envelope. Formatting is a pair of
// stateless mappings over the same internal result; no query logic branches
// on the format.
type PostalHandler struct {
	query *service.QueryService
}

// NewPostalHandler creates a new PostalHandler.
func NewPostalHandler(query *service.QueryService) *PostalHandler {
	return &PostalHandler{query: query}
}

// legacyResponse is the original kodepos envelope.
type legacyResponse struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func legacyOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, legacyResponse{StatusCode: http.StatusOK, Message: "success", Data: data})
}

func legacyError(c *gin.Context, status int, message string) {
	c.JSON(status, legacyResponse{StatusCode: status, Error: message})
}

// SearchLegacy handles GET /search?q=
func (h *PostalHandler) SearchLegacy(c *gin.Context) {
	query, ok := h.searchQuery(c, func(status int, msg string) { legacyError(c, status, msg) })
	if !ok {
		return
	}

	result, err := h.query.Search(c.Request.Context(), query)
	if err != nil {
		legacyError(c, http.StatusInternalServerError, "failed to search postal codes")
		return
	}

	data := make([]models.LegacyPostalResponse, 0, len(result.Records))
	for i := range result.Records {
		data = append(data, result.Records[i].ToLegacy(nil))
	}
	legacyOK(c, data)
}

// DetectLegacy handles GET /detect?latitude=&longitude=[&radius=]
func (h *PostalHandler) DetectLegacy(c *gin.Context) {
	lat, lon, radius, ok := h.geoParams(c, func(status int, msg string) { legacyError(c, status, msg) })
	if !ok {
		return
	}

	result, err := h.query.Detect(c.Request.Context(), lat, lon, radius)
	if err != nil {
		legacyError(c, http.StatusInternalServerError, "failed to detect location")
		return
	}
	if result.Match == nil {
		legacyError(c, http.StatusNotFound, "No postal code found for these coordinates")
		return
	}
	legacyOK(c, result.Match.Record.ToLegacy(&result.Match.DistanceKm))
}

// NearbyLegacy handles GET /nearby?latitude=&longitude=&radius=
func (h *PostalHandler) NearbyLegacy(c *gin.Context) {
	lat, lon, radius, ok := h.geoParams(c, func(status int, msg string) { legacyError(c, status, msg) })
	if !ok {
		return
	}

	result, err := h.query.Nearby(c.Request.Context(), lat, lon, radius)
	if err != nil {
		legacyError(c, http.StatusInternalServerError, "failed to find nearby postal codes")
		return
	}

	data := make([]models.LegacyPostalResponse, 0, len(result.Matches))
	for i := range result.Matches {
		m := result.Matches[i]
		data = append(data, m.Record.ToLegacy(&m.DistanceKm))
	}
	legacyOK(c, data)
}

// Search handles GET /v1/postal-codes/search?q=
func (h *PostalHandler) Search(c *gin.Context) {
	query, ok := h.searchQuery(c, func(status int, msg string) {
		utils.Error(c, status, "VALIDATION_ERROR", msg)
	})
	if !ok {
		return
	}

	result, err := h.query.Search(c.Request.Context(), query)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to search postal codes")
		return
	}

	records := make([]models.ModernPostalResponse, 0, len(result.Records))
	for i := range result.Records {
		records = append(records, result.Records[i].ToModern(nil))
	}
	utils.Success(c, http.StatusOK, "Successfully searched postal codes", gin.H{
		"results": records,
		"cached":  result.Cached,
		"tookMs":  result.TookMs,
	})
}

// Detect handles GET /v1/postal-codes/detect?latitude=&longitude=[&radius=]
func (h *PostalHandler) Detect(c *gin.Context) {
	lat, lon, radius, ok := h.geoParams(c, func(status int, msg string) {
		utils.Error(c, status, "VALIDATION_ERROR", msg)
	})
	if !ok {
		return
	}

	result, err := h.query.Detect(c.Request.Context(), lat, lon, radius)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to detect location")
		return
	}
	if result.Match == nil {
		utils.Error(c, http.StatusNotFound, "NOT_FOUND", "No postal code found within radius")
		return
	}
	utils.Success(c, http.StatusOK, "Successfully detected postal code", gin.H{
		"result": result.Match.Record.ToModern(&result.Match.DistanceKm),
		"cached": result.Cached,
		"tookMs": result.TookMs,
	})
}

// Nearby handles GET /v1/postal-codes/nearby?latitude=&longitude=&radius=
func (h *PostalHandler) Nearby(c *gin.Context) {
	lat, lon, radius, ok := h.geoParams(c, func(status int, msg string) {
		utils.Error(c, status, "VALIDATION_ERROR", msg)
	})
	if !ok {
		return
	}

	result, err := h.query.Nearby(c.Request.Context(), lat, lon, radius)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to find nearby postal codes")
		return
	}

	records := make([]models.ModernPostalResponse, 0, len(result.Matches))
	for i := range result.Matches {
		m := result.Matches[i]
		records = append(records, m.Record.ToModern(&m.DistanceKm))
	}
	utils.Success(c, http.StatusOK, "Successfully retrieved nearby postal codes", gin.H{
		"results": records,
		"cached":  result.Cached,
		"tookMs":  result.TookMs,
	})
}

// searchQuery extracts and validates the q parameter.
func (h *PostalHandler) searchQuery(c *gin.Context, fail func(status int, msg string)) (string, bool) {
	query := strings.TrimSpace(c.Query("q"))
	if len(query) < MinQueryLength {
		fail(http.StatusBadRequest, "Query must be at least 2 characters long")
		return "", false
	}
	return query, true
}

// geoParams extracts and validates the coordinate parameters. Bounds are
// enforced here; the geospatial engine does not re-validate them.
func (h *PostalHandler) geoParams(c *gin.Context, fail func(status int, msg string)) (lat, lon, radius float64, ok bool) {
	lat, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil {
		fail(http.StatusBadRequest, "latitude must be a number")
		return 0, 0, 0, false
	}
	lon, err = strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil {
		fail(http.StatusBadRequest, "longitude must be a number")
		return 0, 0, 0, false
	}
	if lat < service.MinLatitude || lat > service.MaxLatitude {
		fail(http.StatusBadRequest, "Latitude must be between -11 and 6 degrees (Indonesian bounds)")
		return 0, 0, 0, false
	}
	if lon < service.MinLongitude || lon > service.MaxLongitude {
		fail(http.StatusBadRequest, "Longitude must be between 95 and 141 degrees (Indonesian bounds)")
		return 0, 0, 0, false
	}

	radius = DefaultRadiusKm
	if raw := c.Query("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			fail(http.StatusBadRequest, "radius must be a positive number")
			return 0, 0, 0, false
		}
	}
	return lat, lon, radius, true
}
