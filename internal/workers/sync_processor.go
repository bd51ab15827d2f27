// internal/workers/sync_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/pkg/logger"
)

// SyncProcessor replays offline uploads that the API deferred to the queue
type SyncProcessor struct {
	sync   ports.SyncService
	jobs   ports.JobStore
	cache  ports.CacheInvalidator
	logger *slog.Logger
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(sync ports.SyncService, jobs ports.JobStore, cache ports.CacheInvalidator, logger *slog.Logger) *SyncProcessor {
	return &SyncProcessor{
		sync:   sync,
		jobs:   jobs,
		cache:  cache,
		logger: logger.With(slog.String("processor", "sales_sync")),
	}
}

// ProcessSync handles sales:sync tasks. Any failure after the replay
// started is final, since a retry could record sales twice.
func (p *SyncProcessor) ProcessSync(ctx context.Context, t *asynq.Task) error {
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	ctx = logger.WithJobID(ctx, payload.JobID)
	ctx = logger.WithUserID(ctx, payload.Actor)

	job := loadJob(ctx, p.jobs, payload.JobID, func() *domain.ImportJob {
		return &domain.ImportJob{ID: payload.JobID, Actor: payload.Actor}
	})
	job.Status = domain.JobProcessing
	saveJob(ctx, p.jobs, job, p.logger)

	req := payload.Request
	req.Actor = payload.Actor

	resp, err := p.sync.Sync(ctx, &req)
	if err != nil {
		if resp != nil {
			job.Outcome = resp.Outcome
			if p.cache != nil && len(resp.Outcome.Successes) > 0 {
				p.cache.InvalidateSales(ctx)
			}
		}
		return failJob(ctx, p.jobs, job, err, false, p.logger)
	}
	if p.cache != nil && len(resp.Outcome.Successes) > 0 {
		p.cache.InvalidateSales(ctx)
	}

	job.Outcome = resp.Outcome
	job.Status = domain.JobCompleted
	saveJob(ctx, p.jobs, job, p.logger)

	p.logger.InfoContext(ctx, "deferred sync completed",
		slog.String("status", string(resp.Outcome.Status)),
		slog.Int("successes", len(resp.Outcome.Successes)),
		slog.Int("conflicts", len(resp.Outcome.Conflicts)))
	return nil
}
