// internal/handlers/import.go
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/handlers/middleware"
	"github.com/ammerola/salesflow-be/internal/workers"
)

const (
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ImportHandler accepts sales files and queues them for the worker
type ImportHandler struct {
	storage     ports.FileStorage
	jobs        ports.JobStore
	enqueuer    workers.Enqueuer
	maxFileSize int64
	logger      *slog.Logger
}

// NewImportHandler creates a new import handler. maxFileSize is in bytes.
func NewImportHandler(
	storage ports.FileStorage,
	jobs ports.JobStore,
	enqueuer workers.Enqueuer,
	maxFileSize int64,
	logger *slog.Logger,
) *ImportHandler {
	return &ImportHandler{
		storage:     storage,
		jobs:        jobs,
		enqueuer:    enqueuer,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("handler", "import")),
	}
}

// ImportSales handles POST /api/v1/import/sales
func (h *ImportHandler) ImportSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, h.logger, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		respondError(w, h.logger, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		respondError(w, h.logger, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}

	var contentType string
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		contentType = contentTypeCSV
	case ".xlsx":
		contentType = contentTypeXLSX
	default:
		respondError(w, h.logger, http.StatusBadRequest, "Only .csv and .xlsx files are allowed")
		return
	}

	jobID := uuid.New().String()
	fileName := filepath.Base(header.Filename)
	key := fmt.Sprintf("%s%s_%s", workers.ImportPrefix, jobID, fileName)
	actor := middleware.Actor(ctx)

	if _, err := h.storage.Upload(ctx, key, file, contentType); err != nil {
		h.logger.ErrorContext(ctx, "failed to store upload",
			slog.String("file_name", fileName),
			slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	now := time.Now().UTC()
	job := &domain.ImportJob{
		ID:        jobID,
		Status:    domain.JobPending,
		FileKey:   key,
		FileName:  fileName,
		Actor:     actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.jobs.Save(ctx, job); err != nil {
		h.discard(r, key)
		h.logger.ErrorContext(ctx, "failed to create job record", slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to create import job")
		return
	}

	task, err := workers.NewImportTask(workers.ImportPayload{
		JobID:    jobID,
		FileKey:  key,
		FileName: fileName,
		Actor:    actor,
	})
	if err != nil {
		h.discard(r, key)
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to queue import job")
		return
	}

	info, err := h.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		h.discard(r, key)
		h.logger.ErrorContext(ctx, "failed to enqueue task", slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to queue import job")
		return
	}

	h.logger.InfoContext(ctx, "sales import queued",
		slog.String("job_id", jobID),
		slog.String("task_id", info.ID),
		slog.String("file_name", fileName),
		slog.Int64("size", header.Size))

	respondJSON(w, h.logger, http.StatusAccepted, map[string]interface{}{
		"job_id":     jobID,
		"status":     job.Status,
		"status_url": "/api/v1/import/status/" + jobID,
		"message":    "Sales import has been queued for processing",
	})
}

// ImportStatus handles GET /api/v1/import/status/{jobId}
func (h *ImportHandler) ImportStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("jobId")

	if _, err := uuid.Parse(jobID); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	job, err := h.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, h.logger, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to get job status",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to get job status")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, job)
}

func (h *ImportHandler) discard(r *http.Request, key string) {
	if err := h.storage.Delete(r.Context(), key); err != nil {
		h.logger.WarnContext(r.Context(), "failed to remove orphaned upload",
			slog.String("file_key", key),
			slog.String("error", err.Error()))
	}
}
