// internal/core/services/report.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

const (
	dashboardTopProducts = 5
	reportTopProducts    = 10
)

// ReportService assembles dashboards and daily summaries
type ReportService struct {
	sales    ports.SaleRepository
	reports  ports.ReportRepository
	products ports.ProductRepository
	lowLimit int
	logger   *slog.Logger
	now      func() time.Time
}

var _ ports.ReportService = (*ReportService)(nil)

// NewReportService creates a new report service. lowStockLimit caps the
// dashboard's low stock list.
func NewReportService(
	sales ports.SaleRepository,
	reports ports.ReportRepository,
	products ports.ProductRepository,
	lowStockLimit int,
	logger *slog.Logger,
) *ReportService {
	if lowStockLimit <= 0 {
		lowStockLimit = 20
	}
	return &ReportService{
		sales:    sales,
		reports:  reports,
		products: products,
		lowLimit: lowStockLimit,
		logger:   logger.With(slog.String("service", "reports")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Dashboard returns today's totals, best sellers and low stock products
func (s *ReportService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	now := s.now()
	from := startOfDay(now)
	to := from.AddDate(0, 0, 1)

	sales, err := s.sales.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list today's sales: %w", err)
	}
	top, err := s.reports.TopProducts(ctx, from, to, dashboardTopProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}
	low, err := s.LowStock(ctx, s.lowLimit)
	if err != nil {
		return nil, err
	}

	return &domain.Dashboard{
		Date:        from.Format(time.DateOnly),
		Today:       Summarize(sales),
		TopProducts: top,
		LowStock:    low,
		GeneratedAt: now,
	}, nil
}

// DailyReport summarizes the UTC day containing day
func (s *ReportService) DailyReport(ctx context.Context, day time.Time) (*domain.DailyReport, error) {
	from := startOfDay(day)
	to := from.AddDate(0, 0, 1)

	sales, err := s.sales.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales for %s: %w", from.Format(time.DateOnly), err)
	}
	top, err := s.reports.TopProducts(ctx, from, to, reportTopProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	report := &domain.DailyReport{
		Date:        from.Format(time.DateOnly),
		Summary:     Summarize(sales),
		TopProducts: top,
		GeneratedAt: s.now(),
	}

	s.logger.DebugContext(ctx, "daily report built",
		slog.String("date", report.Date),
		slog.Int("sales", report.Summary.SaleCount))
	return report, nil
}

// LowStock lists products at or below their threshold, lowest stock first
func (s *ReportService) LowStock(ctx context.Context, limit int) ([]*domain.Product, error) {
	if limit <= 0 {
		return nil, domain.NewValidationError(-1, "limit must be positive")
	}
	products, err := s.products.ListLowStock(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	if products == nil {
		products = []*domain.Product{}
	}
	return products, nil
}
