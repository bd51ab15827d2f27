// internal/core/ports/stock_ledger.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

// StockLedger is the single authority for mutating product stock.
// Implementations bound to a unit of work hold row locks taken by
// FindLocked until the unit ends.
type StockLedger interface {
	// Resolve looks a product up by id (preferred) or SKU without locking.
	Resolve(ctx context.Context, ref domain.ProductRef) (*domain.Product, error)
	// FindLocked returns the products keyed by id, locked in ascending id
	// order. A missing id yields domain.ErrNotFound.
	FindLocked(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	// ReduceStock decrements stock and persists the product.
	ReduceStock(ctx context.Context, product *domain.Product, quantity int) error
}

// ProductRepository covers product reads and plain CRUD used outside the
// sale path (seeding, sync pull, reports).
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
	// FindByName matches the name case-insensitively. It returns
	// domain.ErrValidation when more than one product shares the name.
	// Like the other Find methods it returns nil, nil on a miss.
	FindByName(ctx context.Context, name string) (*domain.Product, error)
	ListUpdatedSince(ctx context.Context, since time.Time) ([]*domain.Product, error)
	ListLowStock(ctx context.Context, limit int) ([]*domain.Product, error)
}
