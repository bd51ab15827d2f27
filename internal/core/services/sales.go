// internal/core/services/sales.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/pkg/metrics"
)

// SaleService turns line requests into priced, stock-checked sales
type SaleService struct {
	ledger  ports.StockLedger
	sales   ports.SaleRepository
	uow     ports.UnitOfWork
	locks   ports.LockManager
	alerter ports.StockAlerter
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Statically assert that *SaleService implements the SaleService interface.
var _ ports.SaleService = (*SaleService)(nil)

// SaleServiceOption customizes a SaleService
type SaleServiceOption func(*SaleService)

// WithStockAlerter notifies alerter about products that hit their
// low-stock threshold
func WithStockAlerter(alerter ports.StockAlerter) SaleServiceOption {
	return func(s *SaleService) { s.alerter = alerter }
}

// WithMetrics records sale counters and lock wait times
func WithMetrics(m *metrics.Metrics) SaleServiceOption {
	return func(s *SaleService) { s.metrics = m }
}

// WithClock overrides time.Now, used by tests
func WithClock(now func() time.Time) SaleServiceOption {
	return func(s *SaleService) { s.now = now }
}

// NewSaleService creates a new sale service
func NewSaleService(
	ledger ports.StockLedger,
	sales ports.SaleRepository,
	uow ports.UnitOfWork,
	locks ports.LockManager,
	logger *slog.Logger,
	opts ...SaleServiceOption,
) *SaleService {
	s := &SaleService{
		ledger: ledger,
		sales:  sales,
		uow:    uow,
		locks:  locks,
		logger: logger.With(slog.String("service", "sales")),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSale validates, locks, prices and persists a sale as one atomic
// unit. Either every line is applied or none is.
func (s *SaleService) CreateSale(ctx context.Context, req *domain.CreateSaleRequest) (*domain.Sale, error) {
	start := s.now()

	sale, lowStock, err := s.createSale(ctx, req)
	if err != nil {
		s.metrics.ObserveSaleFailure(req.Source, domain.Reason(err))
		s.logger.WarnContext(ctx, "sale rejected",
			slog.String("reason", domain.Reason(err)),
			slog.String("source", string(req.Source)),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.metrics.ObserveSale(sale.Source, sale.TotalAmount, s.now().Sub(start))
	s.logger.InfoContext(ctx, "sale created",
		slog.Int64("sale_id", sale.ID),
		slog.Int("lines", len(sale.Items)),
		slog.String("total", sale.TotalAmount.StringFixed(2)),
		slog.String("source", string(sale.Source)))

	if len(lowStock) > 0 && s.alerter != nil {
		if err := s.alerter.LowStock(ctx, lowStock); err != nil {
			s.logger.WarnContext(ctx, "failed to raise low stock alert",
				slog.Int("products", len(lowStock)),
				slog.String("error", err.Error()))
		}
	}

	return sale, nil
}

func (s *SaleService) createSale(ctx context.Context, req *domain.CreateSaleRequest) (*domain.Sale, []*domain.Product, error) {
	if req == nil {
		return nil, nil, domain.NewValidationError(-1, "request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	// Resolve identities before locking. Prices and stock are re-read
	// under the lock below.
	lineIDs := make([]int64, len(req.Items))
	for i, line := range req.Items {
		p, err := s.ledger.Resolve(ctx, line.Ref())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil, domain.NewNotFoundError(i, line.Ref())
			}
			return nil, nil, persistenceError("failed to resolve product", err)
		}
		lineIDs[i] = p.ID
	}

	ids := uniqueSorted(lineIDs)

	lockStart := s.now()
	release, err := s.locks.Acquire(ctx, ids)
	s.metrics.ObserveLockWait(s.now().Sub(lockStart), err)
	if err != nil {
		if errors.Is(err, domain.ErrLockTimeout) {
			return nil, nil, &domain.SaleError{Kind: domain.ErrLockTimeout, Line: -1, Message: "product is busy, retry later", Err: err}
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, persistenceError("failed to acquire product locks", err)
	}
	// Released only after the unit below has committed or rolled back.
	defer release()

	saleDate := s.now()
	if req.SaleDate != nil && !req.SaleDate.IsZero() {
		saleDate = req.SaleDate.UTC()
	}

	var saved *domain.Sale
	var lowStock []*domain.Product

	err = s.uow.Execute(ctx, func(ctx context.Context, repos ports.TxRepositories) error {
		locked, err := repos.Ledger.FindLocked(ctx, ids)
		if err != nil {
			return err
		}

		sale := domain.NewSale(saleDate, req.Source, req.Actor)
		for i, line := range req.Items {
			product, ok := locked[lineIDs[i]]
			if !ok {
				return domain.NewNotFoundError(i, line.Ref())
			}
			if !product.CanFulfill(line.Quantity) {
				return domain.NewInsufficientStockError(i, product, line.Quantity)
			}

			item := domain.NewSaleItem(product, line.Quantity)
			if item.Subtotal.GreaterThan(domain.MaxAmount) {
				return domain.NewValidationError(i, "subtotal %s exceeds the maximum amount %s",
					item.Subtotal.StringFixed(2), domain.MaxAmount.StringFixed(2))
			}
			if err := repos.Ledger.ReduceStock(ctx, product, line.Quantity); err != nil {
				var se *domain.SaleError
				if errors.As(err, &se) {
					se.Line = i
				}
				return err
			}
			sale.AddItem(item)
		}
		sale.RecalculateTotal()
		if sale.TotalAmount.GreaterThan(domain.MaxAmount) {
			return domain.NewValidationError(-1, "total %s exceeds the maximum amount %s",
				sale.TotalAmount.StringFixed(2), domain.MaxAmount.StringFixed(2))
		}

		out, err := repos.Sales.Save(ctx, sale)
		if err != nil {
			return err
		}
		saved = out

		for _, id := range ids {
			if p := locked[id]; p.IsLowStock() {
				lowStock = append(lowStock, p.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, classify(ctx, err)
	}

	return saved, lowStock, nil
}

// GetSale returns one sale with its items
func (s *SaleService) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if sale == nil {
		return nil, fmt.Errorf("sale %d: %w", id, domain.ErrNotFound)
	}
	return sale, nil
}

// SalesToday returns sales recorded since UTC midnight
func (s *SaleService) SalesToday(ctx context.Context) ([]*domain.Sale, error) {
	start := startOfDay(s.now())
	return s.SalesBetween(ctx, start, start.AddDate(0, 0, 1))
}

// SalesLastDays returns sales since midnight days ago
func (s *SaleService) SalesLastDays(ctx context.Context, days int) ([]*domain.Sale, error) {
	if days < 0 {
		return nil, domain.NewValidationError(-1, "days cannot be negative")
	}
	now := s.now()
	return s.SalesBetween(ctx, startOfDay(now).AddDate(0, 0, -days), now.Add(time.Nanosecond))
}

// SalesBetween returns sales with from <= sale_date < to
func (s *SaleService) SalesBetween(ctx context.Context, from, to time.Time) ([]*domain.Sale, error) {
	if !to.After(from) {
		return nil, domain.NewValidationError(-1, "range end must be after start")
	}
	sales, err := s.sales.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return sales, nil
}

// RecentSales returns the newest limit sales
func (s *SaleService) RecentSales(ctx context.Context, limit int) ([]*domain.Sale, error) {
	if limit <= 0 {
		return nil, domain.NewValidationError(-1, "limit must be positive")
	}
	sales, err := s.sales.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent sales: %w", err)
	}
	return sales, nil
}

// ProductSalesHistory returns units sold per day over the last days
func (s *SaleService) ProductSalesHistory(ctx context.Context, productID int64, days int) ([]domain.DailySales, error) {
	if productID <= 0 {
		return nil, domain.NewValidationError(-1, "product_id must be positive")
	}
	if days < 0 {
		return nil, domain.NewValidationError(-1, "days cannot be negative")
	}
	since := startOfDay(s.now()).AddDate(0, 0, -days)
	history, err := s.sales.ProductHistory(ctx, productID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load product history: %w", err)
	}
	return history, nil
}

// classify keeps taxonomy errors as they are and marks everything else as
// a persistence failure.
func classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrLockTimeout),
		errors.Is(err, domain.ErrPersistence):
		return err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	default:
		return persistenceError("failed to record sale", err)
	}
}

func persistenceError(msg string, err error) error {
	return &domain.SaleError{Kind: domain.ErrPersistence, Line: -1, Message: msg, Err: err}
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
