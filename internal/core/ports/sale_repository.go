// internal/core/ports/sale_repository.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

// SaleRepository persists sales with their item snapshots. There is no
// update or delete.
type SaleRepository interface {
	// Save writes the sale and its items atomically and assigns ids.
	Save(ctx context.Context, sale *domain.Sale) (*domain.Sale, error)
	FindByID(ctx context.Context, id int64) (*domain.Sale, error)
	// ListByDateRange returns sales with from <= sale_date < to, newest first.
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Sale, error)
	// ListRecent returns the newest limit sales.
	ListRecent(ctx context.Context, limit int) ([]*domain.Sale, error)
	// ProductHistory sums quantities sold per UTC day since the given
	// time, ascending by date.
	ProductHistory(ctx context.Context, productID int64, since time.Time) ([]domain.DailySales, error)
}

// SyncLogRepository stores batch audit entries
type SyncLogRepository interface {
	Record(ctx context.Context, entry *domain.SyncLog) error
	ListRecent(ctx context.Context, limit int) ([]*domain.SyncLog, error)
	// DeleteOlderThan removes entries synced before cutoff and reports how
	// many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReportRepository serves aggregate reads for dashboards and reports
type ReportRepository interface {
	// TopProducts ranks products by units sold with from <= sale_date < to.
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]domain.ProductSalesTotal, error)
}
