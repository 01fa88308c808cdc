package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/kodepos-id/kodepos_api/internal/repository"
	"github.com/kodepos-id/kodepos_api/internal/utils"
)

var startTime = time.Now()

// HealthHandler provides health endpoint.
type HealthHandler struct {
	db         *sqlx.DB
	postalRepo *repository.PostalRepository
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sqlx.DB, postalRepo *repository.PostalRepository) *HealthHandler {
	return &HealthHandler{db: db, postalRepo: postalRepo}
}

// GetHealth responds with service and database status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	dbStatus := "connected"
	var recordCount int
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		dbStatus = "disconnected"
	} else if count, err := h.postalRepo.CountAll(c.Request.Context()); err == nil {
		recordCount = count
	}

	utils.Success(c, 200, "Service is healthy", gin.H{
		"status":  "healthy",
		"version": "1.0.0",
		"uptime":  int(time.Since(startTime).Seconds()),
		"database": gin.H{
			"status":        dbStatus,
			"postalRecords": recordCount,
		},
	})
}
