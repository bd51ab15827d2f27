// internal/core/services/reconciler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/pkg/metrics"
)

// BatchReconciler replays independent sale requests, recording business
// rule failures as conflicts instead of aborting the batch.
type BatchReconciler struct {
	sales       ports.SaleService
	audit       ports.SyncLogRepository
	concurrency int
	maxSize     int
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

var _ ports.BatchReconciler = (*BatchReconciler)(nil)

// ReconcilerConfig tunes batch processing
type ReconcilerConfig struct {
	// Concurrency above 1 processes items in parallel. Per-product
	// ordering is still enforced by the lock manager.
	Concurrency int
	// MaxBatchSize rejects larger batches up front. Zero disables the check.
	MaxBatchSize int
	Metrics      *metrics.Metrics
}

// NewBatchReconciler creates a new batch reconciler
func NewBatchReconciler(sales ports.SaleService, audit ports.SyncLogRepository, cfg ReconcilerConfig, logger *slog.Logger) *BatchReconciler {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchReconciler{
		sales:       sales,
		audit:       audit,
		concurrency: concurrency,
		maxSize:     cfg.MaxBatchSize,
		metrics:     cfg.Metrics,
		logger:      logger.With(slog.String("service", "reconciler")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile runs every sale request in its own atomic unit. Insufficient
// stock, unknown products, malformed lines and lock timeouts become
// conflicts. A persistence failure stops the batch: the error is returned
// together with a FAILED outcome listing the sales already committed, so
// callers never retry entries that succeeded.
func (r *BatchReconciler) Reconcile(ctx context.Context, req *domain.BatchRequest) (*domain.BatchOutcome, error) {
	if req == nil {
		return nil, domain.NewValidationError(-1, "batch request is required")
	}
	if r.maxSize > 0 && len(req.Sales) > r.maxSize {
		return nil, domain.NewValidationError(-1, "batch of %d sales exceeds the limit of %d", len(req.Sales), r.maxSize)
	}
	if req.Source == "" {
		req.Source = domain.SourceBulkImport
	}

	r.logger.InfoContext(ctx, "reconciling batch",
		slog.String("actor", req.Actor),
		slog.String("source", string(req.Source)),
		slog.Int("sales", len(req.Sales)),
		slog.Int("concurrency", r.concurrency))

	results := make([]domain.ItemOutcome, len(req.Sales))
	attempted := make([]bool, len(req.Sales))
	var err error
	if r.concurrency == 1 {
		err = r.runSequential(ctx, req, results, attempted)
	} else {
		err = r.runConcurrent(ctx, req, results, attempted)
	}

	if err != nil {
		outcome := domain.NewAbortedBatchOutcome(req, results, attempted, r.now())
		r.recordFailure(ctx, outcome)
		return outcome, err
	}

	outcome := domain.NewBatchOutcome(req, results, r.now())
	r.metrics.ObserveBatch(outcome.Source, outcome.Status, len(outcome.Successes), len(outcome.Conflicts))

	if err := r.audit.Record(ctx, domain.NewSyncLog(outcome)); err != nil {
		// Sales are committed at this point, so the summary still stands.
		r.logger.ErrorContext(ctx, "failed to record batch audit entry",
			slog.String("actor", req.Actor),
			slog.String("status", string(outcome.Status)),
			slog.String("error", err.Error()))
	}

	r.logger.InfoContext(ctx, "batch reconciled",
		slog.String("status", string(outcome.Status)),
		slog.Int("successes", len(outcome.Successes)),
		slog.Int("conflicts", len(outcome.Conflicts)))

	return outcome, nil
}

func (r *BatchReconciler) runSequential(ctx context.Context, req *domain.BatchRequest, results []domain.ItemOutcome, attempted []bool) error {
	for i := range req.Sales {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch cancelled at item %d: %w", i, err)
		}
		outcome, err := r.apply(ctx, req, i)
		results[i], attempted[i] = outcome, true
		if err != nil {
			return err
		}
	}
	return nil
}

// runConcurrent writes each index from a single goroutine, so results and
// attempted are safe to read once Wait returns.
func (r *BatchReconciler) runConcurrent(ctx context.Context, req *domain.BatchRequest, results []domain.ItemOutcome, attempted []bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range req.Sales {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("batch cancelled at item %d: %w", i, err)
			}
			outcome, err := r.apply(gctx, req, i)
			results[i], attempted[i] = outcome, true
			return err
		})
	}
	return g.Wait()
}

// apply runs one batch entry. A non-nil error is fatal for the batch; the
// returned outcome then records the entry's failure reason.
func (r *BatchReconciler) apply(ctx context.Context, req *domain.BatchRequest, i int) (domain.ItemOutcome, error) {
	saleReq := req.Sales[i]
	saleReq.Actor = req.Actor
	saleReq.Source = req.Source

	sale, err := r.sales.CreateSale(ctx, &saleReq)
	if err == nil {
		total := sale.TotalAmount
		return domain.ItemOutcome{Index: i, SaleID: sale.ID, TotalAmount: &total}, nil
	}

	if domain.IsConflict(err) {
		out := domain.ItemOutcome{
			Index:   i,
			Reason:  domain.Reason(err),
			Message: err.Error(),
		}
		var se *domain.SaleError
		if errors.As(err, &se) {
			out.SKU = se.SKU
		}
		return out, nil
	}

	r.logger.ErrorContext(ctx, "batch aborted",
		slog.Int("index", i),
		slog.String("error", err.Error()))
	reason := domain.Reason(err)
	if reason == domain.ReasonUnknown {
		reason = domain.ReasonPersistence
	}
	return domain.ItemOutcome{Index: i, Reason: reason, Message: err.Error()},
		fmt.Errorf("batch item %d: %w", i, err)
}

// recordFailure audits an aborted batch with the counts of what committed
// before the abort.
func (r *BatchReconciler) recordFailure(ctx context.Context, outcome *domain.BatchOutcome) {
	entry := domain.NewSyncLog(outcome)
	r.metrics.ObserveBatch(outcome.Source, domain.BatchFailed, len(outcome.Successes), len(outcome.Conflicts))
	// The request context may already be cancelled.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.audit.Record(auditCtx, entry); err != nil {
		r.logger.ErrorContext(ctx, "failed to record failed batch",
			slog.String("actor", outcome.Actor),
			slog.Int("committed", len(outcome.Successes)),
			slog.String("error", err.Error()))
	}
}
