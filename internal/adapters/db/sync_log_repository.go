// internal/adapters/db/sync_log_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// SyncLogRepository stores batch audit entries
type SyncLogRepository struct {
	q      DBTX
	logger *slog.Logger
}

var _ ports.SyncLogRepository = (*SyncLogRepository)(nil)

// NewSyncLogRepository creates a new audit repository
func NewSyncLogRepository(db *Database, logger *slog.Logger) *SyncLogRepository {
	return &SyncLogRepository{
		q:      db.Pool(),
		logger: logger.With(slog.String("repository", "sync_logs")),
	}
}

// Record inserts entry and assigns its id
func (r *SyncLogRepository) Record(ctx context.Context, entry *domain.SyncLog) error {
	query, args, err := psql.Insert("sync_logs").
		Columns("actor", "source", "sync_timestamp", "client_timestamp", "status", "success_count", "conflict_count").
		Values(entry.Actor, string(entry.Source), entry.SyncTimestamp, entry.ClientTimestamp,
			string(entry.Status), entry.SuccessCount, entry.ConflictCount).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&entry.ID); err != nil {
		return fmt.Errorf("failed to record sync log: %w", err)
	}
	return nil
}

// ListRecent returns the newest limit entries
func (r *SyncLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SyncLog, error) {
	query, args, err := psql.Select(
		"id", "actor", "source", "sync_timestamp", "client_timestamp",
		"status", "success_count", "conflict_count").
		From("sync_logs").
		OrderBy("sync_timestamp DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync logs: %w", err)
	}

	logs, err := ScanMany(rows, func(rows pgx.Rows) (*domain.SyncLog, error) {
		var l domain.SyncLog
		var source, status string
		if err := rows.Scan(&l.ID, &l.Actor, &source, &l.SyncTimestamp, &l.ClientTimestamp,
			&status, &l.SuccessCount, &l.ConflictCount); err != nil {
			return nil, err
		}
		l.Source = domain.SaleSource(source)
		l.Status = domain.BatchStatus(status)
		return &l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync logs: %w", err)
	}
	if logs == nil {
		logs = []*domain.SyncLog{}
	}
	return logs, nil
}

// DeleteOlderThan removes entries synced before cutoff
func (r *SyncLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql.Delete("sync_logs").
		Where(squirrel.Lt{"sync_timestamp": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sync logs: %w", err)
	}
	r.logger.InfoContext(ctx, "old sync logs deleted",
		slog.Int64("rows", tag.RowsAffected()),
		slog.Time("cutoff", cutoff))
	return tag.RowsAffected(), nil
}
