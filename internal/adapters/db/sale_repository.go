// internal/adapters/db/sale_repository.go
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

var saleColumns = []string{"id", "sale_date", "total_amount", "source", "created_by", "created_at"}

var saleItemColumns = []string{
	"id", "sale_id", "product_id", "product_sku", "product_name",
	"quantity", "unit_price", "subtotal",
}

// SaleRepository stores sales and their item snapshots
type SaleRepository struct {
	q      DBTX
	logger *slog.Logger
}

var _ ports.SaleRepository = (*SaleRepository)(nil)

// NewSaleRepository creates a repository over the pool
func NewSaleRepository(db *Database, logger *slog.Logger) *SaleRepository {
	return &SaleRepository{
		q:      db.Pool(),
		logger: logger.With(slog.String("repository", "sales")),
	}
}

func (r *SaleRepository) withTx(tx pgx.Tx) *SaleRepository {
	return &SaleRepository{q: tx, logger: r.logger}
}

// Save inserts the sale and its items. Called inside a unit of work the
// writes commit or roll back with the stock changes.
func (r *SaleRepository) Save(ctx context.Context, sale *domain.Sale) (*domain.Sale, error) {
	query, args, err := psql.Insert("sales").
		Columns("sale_date", "total_amount", "source", "created_by").
		Values(sale.SaleDate, sale.TotalAmount, string(sale.Source), sale.CreatedBy).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&sale.ID, &sale.CreatedAt); err != nil {
		return nil, mapError(err, "failed to insert sale")
	}

	const itemQuery = `
		INSERT INTO sale_items (
			sale_id, product_id, product_sku, product_name, quantity, unit_price, subtotal
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		err := r.q.QueryRow(ctx, itemQuery,
			item.SaleID, item.ProductID, item.ProductSKU, item.ProductName,
			item.Quantity, item.UnitPrice, item.Subtotal,
		).Scan(&item.ID)
		if err != nil {
			return nil, mapError(err, fmt.Sprintf("failed to insert sale item %d", i))
		}
	}

	r.logger.DebugContext(ctx, "sale saved",
		slog.Int64("sale_id", sale.ID),
		slog.Int("items", len(sale.Items)))

	return sale, nil
}

func scanSale(rows pgx.Rows) (*domain.Sale, error) {
	var s domain.Sale
	var source string
	if err := rows.Scan(&s.ID, &s.SaleDate, &s.TotalAmount, &source, &s.CreatedBy, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Source = domain.SaleSource(source)
	s.Items = []domain.SaleItem{}
	return &s, nil
}

func scanSaleItem(rows pgx.Rows) (*domain.SaleItem, error) {
	var it domain.SaleItem
	err := rows.Scan(
		&it.ID, &it.SaleID, &it.ProductID, &it.ProductSKU, &it.ProductName,
		&it.Quantity, &it.UnitPrice, &it.Subtotal,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// FindByID returns nil when the sale does not exist
func (r *SaleRepository) FindByID(ctx context.Context, id int64) (*domain.Sale, error) {
	sales, err := r.listSales(ctx, psql.Select(saleColumns...).From("sales").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, nil
	}
	return sales[0], nil
}

// ListByDateRange returns sales with from <= sale_date < to, newest first
func (r *SaleRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Sale, error) {
	qb := psql.Select(saleColumns...).
		From("sales").
		Where(squirrel.And{
			squirrel.GtOrEq{"sale_date": from},
			squirrel.Lt{"sale_date": to},
		}).
		OrderBy("sale_date DESC", "id DESC")
	return r.listSales(ctx, qb)
}

// ListRecent returns the newest limit sales
func (r *SaleRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Sale, error) {
	qb := psql.Select(saleColumns...).
		From("sales").
		OrderBy("sale_date DESC", "id DESC").
		Limit(uint64(limit))
	return r.listSales(ctx, qb)
}

// listSales runs qb and attaches each sale's items in insertion order
func (r *SaleRepository) listSales(ctx context.Context, qb squirrel.SelectBuilder) ([]*domain.Sale, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	sales, err := ScanMany(rows, scanSale)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sales: %w", err)
	}
	if len(sales) == 0 {
		return []*domain.Sale{}, nil
	}

	ids := make([]int64, len(sales))
	byID := make(map[int64]*domain.Sale, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
		byID[s.ID] = s
	}

	itemQuery, itemArgs, err := psql.Select(saleItemColumns...).
		From("sale_items").
		Where("sale_id = ANY(?)", ids).
		OrderBy("sale_id", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	itemRows, err := r.q.Query(ctx, itemQuery, itemArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	items, err := ScanMany(itemRows, scanSaleItem)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sale items: %w", err)
	}
	for _, it := range items {
		if s, ok := byID[it.SaleID]; ok {
			s.Items = append(s.Items, *it)
		}
	}

	return sales, nil
}

// ProductHistory sums quantities per UTC calendar day, ascending
func (r *SaleRepository) ProductHistory(ctx context.Context, productID int64, since time.Time) ([]domain.DailySales, error) {
	const query = `
		SELECT to_char(date_trunc('day', s.sale_date AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
		       SUM(si.quantity)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE si.product_id = $1 AND s.sale_date >= $2
		GROUP BY day
		ORDER BY day`

	rows, err := r.q.Query(ctx, query, productID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query product history: %w", err)
	}
	defer rows.Close()

	history := []domain.DailySales{}
	for rows.Next() {
		var (
			day string
			qty int64
		)
		if err := rows.Scan(&day, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan product history: %w", err)
		}
		history = append(history, domain.DailySales{Date: day, Quantity: int(qty)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product history: %w", err)
	}
	return history, nil
}
