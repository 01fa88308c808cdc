package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kodepos-id/kodepos_api/internal/config"
	"github.com/kodepos-id/kodepos_api/internal/models"
	"github.com/kodepos-id/kodepos_api/internal/service"
	"github.com/kodepos-id/kodepos_api/internal/utils"
)

// ImportHandler exposes the bulk import pipeline over HTTP.
type ImportHandler struct {
	importSvc *service.ImportService
	importCfg config.ImportConfig
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(importSvc *service.ImportService, importCfg config.ImportConfig) *ImportHandler {
	return &ImportHandler{importSvc: importSvc, importCfg: importCfg}
}

// CreateImport handles POST /v1/import. The upload is a multipart file plus
// optional option fields; the job is processed synchronously and the summary
// returned. A failed job is a result with success=false, not an HTTP error.
func (h *ImportHandler) CreateImport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "file is required")
		return
	}
	if fileHeader.Size > h.importCfg.MaxUploadBytes {
		utils.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the maximum allowed size")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "cannot open uploaded file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.importCfg.MaxUploadBytes+1))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "cannot read uploaded file")
		return
	}
	if int64(len(content)) > h.importCfg.MaxUploadBytes {
		utils.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the maximum allowed size")
		return
	}
	if len(content) == 0 {
		utils.Error(c, http.StatusBadRequest, "EMPTY_UPLOAD", "uploaded file is empty")
		return
	}

	contentType := c.PostForm("content_type")
	if contentType == "" {
		contentType = strings.TrimPrefix(filepath.Ext(fileHeader.Filename), ".")
	}

	opts := importOptions(c)
	var createdBy *string
	if v := c.PostForm("created_by"); v != "" {
		createdBy = &v
	}

	job, err := h.importSvc.CreateJob(c.Request.Context(), fileHeader.Filename, int64(len(content)), contentType, opts, createdBy)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidContentType):
			utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "content type must be json or csv")
		case errors.Is(err, utils.ErrInvalidConfig):
			utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		default:
			utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create import job")
		}
		return
	}

	summary, err := h.importSvc.ProcessImportFile(c.Request.Context(), job.ID, content)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process import")
		return
	}

	if !summary.Success {
		utils.ErrorWithData(c, http.StatusUnprocessableEntity, "IMPORT_FAILED", summary.Message, summary)
		return
	}
	utils.Success(c, http.StatusCreated, "Import completed", summary)
}

// GetImport handles GET /v1/import/:id
func (h *ImportHandler) GetImport(c *gin.Context) {
	info, err := h.importSvc.GetJobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, utils.ErrJobNotFound) {
			utils.Error(c, http.StatusNotFound, "NOT_FOUND", "Import job not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get import job")
		return
	}
	utils.Success(c, http.StatusOK, "Successfully retrieved import job", info)
}

// ListImports handles GET /v1/import?status=&page=&per_page=
func (h *ImportHandler) ListImports(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	var status *models.JobStatus
	if raw := c.Query("status"); raw != "" {
		s := models.JobStatus(raw)
		status = &s
	}

	jobs, total, err := h.importSvc.ListJobs(c.Request.Context(), status, page, perPage)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list import jobs")
		return
	}
	utils.SuccessWithPagination(c, http.StatusOK, "Successfully retrieved import jobs", jobs, page, perPage, total)
}

// CancelImport handles DELETE /v1/import/:id
func (h *ImportHandler) CancelImport(c *gin.Context) {
	cancelled, err := h.importSvc.CancelJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, utils.ErrJobNotFound) {
			utils.Error(c, http.StatusNotFound, "NOT_FOUND", "Import job not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel import job")
		return
	}
	if !cancelled {
		utils.Error(c, http.StatusConflict, "JOB_TERMINAL", "Job already finished and cannot be cancelled")
		return
	}
	utils.Success(c, http.StatusOK, "Import job cancelled", gin.H{"cancelled": true})
}

// GetImportErrors handles GET /v1/import/:id/errors
func (h *ImportHandler) GetImportErrors(c *gin.Context) {
	results, err := h.importSvc.ListJobErrors(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, utils.ErrJobNotFound) {
			utils.Error(c, http.StatusNotFound, "NOT_FOUND", "Import job not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list import errors")
		return
	}
	utils.Success(c, http.StatusOK, "Successfully retrieved import errors", gin.H{"errors": results})
}

// importOptions reads caller overrides from the multipart form fields.
func importOptions(c *gin.Context) *service.ImportOptions {
	opts := &service.ImportOptions{
		DuplicateStrategy: c.PostForm("duplicate_strategy"),
		NotificationEmail: c.PostForm("notification_email"),
	}
	if raw := c.PostForm("batch_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			opts.BatchSize = n
		}
	}
	if raw := c.PostForm("validate_coordinates"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			opts.ValidateCoordinates = &b
		}
	}
	if raw := c.PostForm("skip_invalid_records"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			opts.SkipInvalidRecords = &b
		}
	}
	return opts
}
