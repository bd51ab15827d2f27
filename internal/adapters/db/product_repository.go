// internal/adapters/db/product_repository.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var productColumns = []string{
	"id", "sku", "name", "description", "price",
	"stock_quantity", "low_stock_threshold", "created_at", "updated_at",
}

// ProductRepository is the postgres stock ledger. Bound to a transaction
// it takes row locks; bound to the pool it serves plain reads.
type ProductRepository struct {
	q      DBTX
	logger *slog.Logger
}

var (
	_ ports.ProductRepository = (*ProductRepository)(nil)
	_ ports.StockLedger       = (*ProductRepository)(nil)
)

// NewProductRepository creates a repository over the pool
func NewProductRepository(db *Database, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		q:      db.Pool(),
		logger: logger.With(slog.String("repository", "products")),
	}
}

func (r *ProductRepository) withTx(tx pgx.Tx) *ProductRepository {
	return &ProductRepository{q: tx, logger: r.logger}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price,
		&p.StockQuantity, &p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProductRows(rows pgx.Rows) (*domain.Product, error) {
	return scanProduct(rows)
}

// Create inserts a product and assigns its id
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	p.PrepareForStorage()

	query, args, err := psql.Insert("products").
		Columns("sku", "name", "description", "price", "stock_quantity", "low_stock_threshold", "created_at", "updated_at").
		Values(p.SKU, p.Name, p.Description, p.Price, p.StockQuantity, p.LowStockThreshold, p.CreatedAt, p.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&p.ID); err != nil {
		return mapError(err, "failed to create product")
	}

	r.logger.DebugContext(ctx, "product created",
		slog.Int64("product_id", p.ID),
		slog.String("sku", p.SKU))
	return nil
}

// Update overwrites catalogue fields and stock outside the sale path
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	p.PrepareForStorage()

	query, args, err := psql.Update("products").
		SetMap(map[string]interface{}{
			"sku":                 p.SKU,
			"name":                p.Name,
			"description":         p.Description,
			"price":               p.Price,
			"stock_quantity":      p.StockQuantity,
			"low_stock_threshold": p.LowStockThreshold,
			"updated_at":          p.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": p.ID}).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&p.CreatedAt); err != nil {
		return mapError(err, fmt.Sprintf("failed to update product %d", p.ID))
	}
	return nil
}

func (r *ProductRepository) findOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Product, error) {
	query, args, err := psql.Select(productColumns...).From("products").Where(where).Limit(2).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products, err := ScanMany(rows, scanProductRows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}

	switch len(products) {
	case 0:
		return nil, nil
	case 1:
		return products[0], nil
	default:
		return nil, fmt.Errorf("%w: lookup matched more than one product", domain.ErrValidation)
	}
}

// FindByID returns nil when the product does not exist
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

// FindBySKU matches case-insensitively and returns nil when nothing matches
func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return r.findOne(ctx, squirrel.Expr("lower(sku) = lower(?)", strings.TrimSpace(sku)))
}

// FindByName matches case-insensitively and returns nil when nothing matches
func (r *ProductRepository) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	p, err := r.findOne(ctx, squirrel.Expr("lower(name) = lower(?)", strings.TrimSpace(name)))
	if errors.Is(err, domain.ErrValidation) {
		return nil, fmt.Errorf("%w: product name %q is ambiguous", domain.ErrValidation, name)
	}
	return p, err
}

// Resolve looks up by id first and falls back to SKU
func (r *ProductRepository) Resolve(ctx context.Context, ref domain.ProductRef) (*domain.Product, error) {
	if ref.ID != nil {
		p, err := r.FindByID(ctx, *ref.ID)
		if err != nil || p != nil {
			return p, err
		}
	}
	if strings.TrimSpace(ref.SKU) != "" {
		p, err := r.FindBySKU(ctx, ref.SKU)
		if err != nil || p != nil {
			return p, err
		}
	}
	return nil, fmt.Errorf("product %s: %w", ref, domain.ErrNotFound)
}

// FindLocked selects the rows FOR UPDATE in ascending id order. The locks
// are held until the surrounding transaction ends.
func (r *ProductRepository) FindLocked(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	query, args, err := psql.Select(productColumns...).
		From("products").
		Where("id = ANY(?)", ids).
		OrderBy("id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to lock products")
	}
	products, err := ScanMany(rows, scanProductRows)
	if err != nil {
		return nil, mapError(err, "failed to lock products")
	}

	out := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
		}
	}
	return out, nil
}

// ReduceStock decrements the locked row and refreshes p from it
func (r *ProductRepository) ReduceStock(ctx context.Context, p *domain.Product, quantity int) error {
	if quantity <= 0 {
		return domain.NewValidationError(-1, "quantity must be positive")
	}
	if p.StockQuantity < quantity {
		return domain.NewInsufficientStockError(-1, p, quantity)
	}

	const query = `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity, updated_at`

	err := r.q.QueryRow(ctx, query, p.ID, quantity).Scan(&p.StockQuantity, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// The row changed under us, which the lock should have prevented.
		return domain.NewInsufficientStockError(-1, p, quantity)
	}
	if err != nil {
		return mapError(err, fmt.Sprintf("failed to reduce stock for product %d", p.ID))
	}
	return nil
}

// ListUpdatedSince returns products changed after since, oldest change first
func (r *ProductRepository) ListUpdatedSince(ctx context.Context, since time.Time) ([]*domain.Product, error) {
	query, args, err := psql.Select(productColumns...).
		From("products").
		Where(squirrel.Gt{"updated_at": since}).
		OrderBy("updated_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return r.list(ctx, query, args)
}

// ListLowStock returns products at or below their threshold, lowest stock first
func (r *ProductRepository) ListLowStock(ctx context.Context, limit int) ([]*domain.Product, error) {
	qb := psql.Select(productColumns...).
		From("products").
		Where("stock_quantity <= low_stock_threshold").
		OrderBy("stock_quantity", "id")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return r.list(ctx, query, args)
}

func (r *ProductRepository) list(ctx context.Context, query string, args []interface{}) ([]*domain.Product, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	products, err := ScanMany(rows, scanProductRows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	return products, nil
}
