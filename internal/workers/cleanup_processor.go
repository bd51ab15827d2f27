// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// ImportPrefix is the storage prefix of uploaded sales files
const ImportPrefix = "imports/"

// CleanupProcessor handles cleanup tasks
type CleanupProcessor struct {
	storage         ports.FileStorage
	logs            ports.SyncLogRepository
	uploadRetention time.Duration
	logRetention    time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(storage ports.FileStorage, logs ports.SyncLogRepository, uploadRetention, logRetention time.Duration, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		storage:         storage,
		logs:            logs,
		uploadRetention: uploadRetention,
		logRetention:    logRetention,
		logger:          logger.With(slog.String("processor", "cleanup")),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// CleanupUploads removes import files that no job picked up
func (p *CleanupProcessor) CleanupUploads(ctx context.Context, t *asynq.Task) error {
	if p.uploadRetention <= 0 {
		return nil
	}

	keys, err := p.storage.ListOlderThan(ctx, ImportPrefix, p.now().Add(-p.uploadRetention))
	if err != nil {
		return fmt.Errorf("failed to list old uploads: %w", err)
	}

	var deleted int
	for _, key := range keys {
		if err := p.storage.Delete(ctx, key); err != nil {
			p.logger.WarnContext(ctx, "failed to delete upload",
				slog.String("key", key),
				slog.String("error", err.Error()))
			continue
		}
		deleted++
	}

	p.logger.InfoContext(ctx, "old uploads cleaned up",
		slog.Int("files_found", len(keys)),
		slog.Int("files_deleted", deleted))
	return nil
}

// CleanupSyncLogs removes audit entries past retention
func (p *CleanupProcessor) CleanupSyncLogs(ctx context.Context, t *asynq.Task) error {
	if p.logRetention <= 0 {
		return nil
	}

	n, err := p.logs.DeleteOlderThan(ctx, p.now().Add(-p.logRetention))
	if err != nil {
		return fmt.Errorf("failed to cleanup sync logs: %w", err)
	}

	p.logger.InfoContext(ctx, "old sync logs cleaned up",
		slog.Int64("rows_deleted", n))
	return nil
}
