// internal/adapters/db/report_repository.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// ReportRepository runs read-only aggregates through database/sql so they
// can share a plain *sql.DB with reporting tools.
type ReportRepository struct {
	db *sql.DB
}

var _ ports.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository creates a report repository over db
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// TopProductsQuery builds the ranking query for the window
func TopProductsQuery(from, to time.Time, limit int) squirrel.SelectBuilder {
	qb := psql.Select(
		"si.product_id",
		"MAX(si.product_sku)",
		"MAX(si.product_name)",
		"SUM(si.quantity)",
		"SUM(si.subtotal)",
	).
		From("sale_items si").
		Join("sales s ON s.id = si.sale_id").
		Where(squirrel.And{
			squirrel.GtOrEq{"s.sale_date": from},
			squirrel.Lt{"s.sale_date": to},
		}).
		GroupBy("si.product_id").
		OrderBy("SUM(si.quantity) DESC", "si.product_id")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	return qb
}

// TopProducts ranks products by units sold in [from, to)
func (r *ReportRepository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]domain.ProductSalesTotal, error) {
	rows, err := TopProductsQuery(from, to, limit).RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	defer rows.Close()

	totals := []domain.ProductSalesTotal{}
	for rows.Next() {
		var (
			t       domain.ProductSalesTotal
			qty     int64
			revenue decimal.Decimal
		)
		if err := rows.Scan(&t.ProductID, &t.SKU, &t.Name, &qty, &revenue); err != nil {
			return nil, fmt.Errorf("failed to scan top products: %w", err)
		}
		t.Quantity = int(qty)
		t.Revenue = revenue
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top products: %w", err)
	}
	return totals, nil
}
