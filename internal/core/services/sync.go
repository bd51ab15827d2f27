// internal/core/services/sync.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// SyncService reconciles offline uploads and serves product changes
type SyncService struct {
	reconciler ports.BatchReconciler
	products   ports.ProductRepository
	audit      ports.SyncLogRepository
	logger     *slog.Logger
	now        func() time.Time
}

var _ ports.SyncService = (*SyncService)(nil)

// NewSyncService creates a new sync service
func NewSyncService(reconciler ports.BatchReconciler, products ports.ProductRepository, audit ports.SyncLogRepository, logger *slog.Logger) *SyncService {
	return &SyncService{
		reconciler: reconciler,
		products:   products,
		audit:      audit,
		logger:     logger.With(slog.String("service", "sync")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Sync replays the client's offline sales and returns the products that
// changed since its last sync, including the stock moves just applied.
// If the replay aborts, the error comes with a response carrying the
// FAILED outcome and a zero NewSyncTimestamp, so the client resubmits
// only what did not commit and keeps its previous sync point.
func (s *SyncService) Sync(ctx context.Context, req *domain.SyncRequest) (*domain.SyncResponse, error) {
	if req == nil {
		return nil, domain.NewValidationError(-1, "sync request is required")
	}
	if req.Actor == "" {
		return nil, domain.NewValidationError(-1, "actor is required")
	}

	// Taken before replaying so the client's next pull includes this run.
	syncStart := s.now()

	outcome, err := s.reconciler.Reconcile(ctx, &domain.BatchRequest{
		Actor:           req.Actor,
		Source:          domain.SourceOfflineSync,
		ClientTimestamp: req.OfflineTimestamp,
		Sales:           req.OfflineSales,
	})
	if err != nil {
		if outcome == nil {
			return nil, err
		}
		return &domain.SyncResponse{Outcome: outcome, UpdatedProducts: []*domain.Product{}}, err
	}

	resp := &domain.SyncResponse{
		Outcome:          outcome,
		NewSyncTimestamp: syncStart,
		UpdatedProducts:  []*domain.Product{},
	}

	if req.LastSyncTimestamp != nil {
		products, err := s.ChangesSince(ctx, *req.LastSyncTimestamp)
		if err != nil {
			return nil, err
		}
		resp.UpdatedProducts = products
	}

	s.logger.InfoContext(ctx, "offline sync processed",
		slog.String("actor", req.Actor),
		slog.String("status", string(outcome.Status)),
		slog.Int("updated_products", len(resp.UpdatedProducts)))

	return resp, nil
}

// ChangesSince returns products updated after since
func (s *SyncService) ChangesSince(ctx context.Context, since time.Time) ([]*domain.Product, error) {
	products, err := s.products.ListUpdatedSince(ctx, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list changed products: %w", err)
	}
	if products == nil {
		products = []*domain.Product{}
	}
	return products, nil
}

// RecentLogs returns the newest audit entries
func (s *SyncService) RecentLogs(ctx context.Context, limit int) ([]*domain.SyncLog, error) {
	if limit <= 0 {
		return nil, domain.NewValidationError(-1, "limit must be positive")
	}
	logs, err := s.audit.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync logs: %w", err)
	}
	return logs, nil
}
