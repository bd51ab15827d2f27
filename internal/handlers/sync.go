// internal/handlers/sync.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/handlers/middleware"
	"github.com/ammerola/salesflow-be/internal/workers"
)

// SyncHandler serves offline client uploads and change pulls
type SyncHandler struct {
	sync        ports.SyncService
	enqueuer    workers.Enqueuer // nil disables async sync
	jobs        ports.JobStore
	invalidator ports.CacheInvalidator
	logger      *slog.Logger
}

// NewSyncHandler creates a new sync handler. enqueuer and jobs may be nil,
// in which case every sync runs inline.
func NewSyncHandler(
	sync ports.SyncService,
	enqueuer workers.Enqueuer,
	jobs ports.JobStore,
	invalidator ports.CacheInvalidator,
	logger *slog.Logger,
) *SyncHandler {
	return &SyncHandler{
		sync:        sync,
		enqueuer:    enqueuer,
		jobs:        jobs,
		invalidator: invalidator,
		logger:      logger.With(slog.String("handler", "sync")),
	}
}

// Sync handles POST /api/v1/sync. With ?async=true the upload is queued
// and a job id is returned for polling.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.SyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	req.Actor = middleware.Actor(ctx)

	if r.URL.Query().Get("async") == "true" && h.enqueuer != nil && h.jobs != nil {
		h.enqueueSync(w, r, &req)
		return
	}

	resp, err := h.sync.Sync(ctx, &req)
	if err != nil {
		var outcome *domain.BatchOutcome
		if resp != nil {
			outcome = resp.Outcome
		}
		if h.invalidator != nil && outcome != nil && len(outcome.Successes) > 0 {
			h.invalidator.InvalidateSales(ctx)
		}
		respondBatchError(ctx, w, h.logger, err, outcome, "Failed to sync offline sales")
		return
	}
	if h.invalidator != nil && len(resp.Outcome.Successes) > 0 {
		h.invalidator.InvalidateSales(ctx)
	}

	respondJSON(w, h.logger, http.StatusOK, resp)
}

func (h *SyncHandler) enqueueSync(w http.ResponseWriter, r *http.Request, req *domain.SyncRequest) {
	ctx := r.Context()

	now := time.Now().UTC()
	job := &domain.ImportJob{
		ID:        uuid.New().String(),
		Status:    domain.JobPending,
		Actor:     req.Actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.jobs.Save(ctx, job); err != nil {
		h.logger.ErrorContext(ctx, "failed to create sync job", slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to queue sync")
		return
	}

	task, err := workers.NewSyncTask(workers.SyncPayload{JobID: job.ID, Actor: req.Actor, Request: *req})
	if err != nil {
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to queue sync")
		return
	}
	info, err := h.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue sync", slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to queue sync")
		return
	}

	h.logger.InfoContext(ctx, "offline sync queued",
		slog.String("job_id", job.ID),
		slog.String("task_id", info.ID),
		slog.Int("sales", len(req.OfflineSales)))

	respondJSON(w, h.logger, http.StatusAccepted, map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"status_url": "/api/v1/import/status/" + job.ID,
	})
}

// Changes handles GET /api/v1/sync/changes?since=
func (h *SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	since, ok, err := queryTime(r, "since")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		respondError(w, h.logger, http.StatusBadRequest, "since is required")
		return
	}

	products, err := h.sync.ChangesSince(ctx, since)
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to list product changes")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"since":    since,
		"products": products,
	})
}

// Logs handles GET /api/v1/sync/logs
func (h *SyncHandler) Logs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := queryInt(r, "limit", 50, 1, 500)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.sync.RecentLogs(ctx, limit)
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to list sync logs")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"logs": logs,
	})
}
