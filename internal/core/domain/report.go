// internal/core/domain/report.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSalesTotal is one product's sales over a reporting window
type ProductSalesTotal struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// SalesSummary aggregates a list of sales
type SalesSummary struct {
	SaleCount int             `json:"sale_count"`
	UnitsSold int             `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
	Average   decimal.Decimal `json:"average_sale"`
}

// Dashboard is the point-of-sale landing view
type Dashboard struct {
	Date        string              `json:"date"`
	Today       SalesSummary        `json:"today"`
	TopProducts []ProductSalesTotal `json:"top_products"`
	LowStock    []*Product          `json:"low_stock"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// DailyReport summarizes one UTC calendar day
type DailyReport struct {
	Date        string              `json:"date"`
	Summary     SalesSummary        `json:"summary"`
	TopProducts []ProductSalesTotal `json:"top_products"`
	GeneratedAt time.Time           `json:"generated_at"`
}
