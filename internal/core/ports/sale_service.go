// internal/core/ports/sale_service.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

// SaleService builds and reads sales
type SaleService interface {
	CreateSale(ctx context.Context, req *domain.CreateSaleRequest) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	SalesToday(ctx context.Context) ([]*domain.Sale, error)
	SalesLastDays(ctx context.Context, days int) ([]*domain.Sale, error)
	SalesBetween(ctx context.Context, from, to time.Time) ([]*domain.Sale, error)
	RecentSales(ctx context.Context, limit int) ([]*domain.Sale, error)
	ProductSalesHistory(ctx context.Context, productID int64, days int) ([]domain.DailySales, error)
}

// BatchReconciler replays independent sale requests. When a batch aborts,
// Reconcile returns a FAILED outcome alongside the error whenever any
// entry was attempted.
type BatchReconciler interface {
	Reconcile(ctx context.Context, req *domain.BatchRequest) (*domain.BatchOutcome, error)
}

// SyncService handles offline client uploads and change pulls
type SyncService interface {
	Sync(ctx context.Context, req *domain.SyncRequest) (*domain.SyncResponse, error)
	ChangesSince(ctx context.Context, since time.Time) ([]*domain.Product, error)
	RecentLogs(ctx context.Context, limit int) ([]*domain.SyncLog, error)
}

// StockAlerter is told about products that reached their low-stock
// threshold after a sale
type StockAlerter interface {
	LowStock(ctx context.Context, products []*domain.Product) error
}

// ReportService builds read-only sales views
type ReportService interface {
	Dashboard(ctx context.Context) (*domain.Dashboard, error)
	// DailyReport covers the UTC calendar day containing day.
	DailyReport(ctx context.Context, day time.Time) (*domain.DailyReport, error)
	LowStock(ctx context.Context, limit int) ([]*domain.Product, error)
}
