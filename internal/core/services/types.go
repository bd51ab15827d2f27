// internal/core/services/types.go
package services

import (
	"github.com/shopspring/decimal"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

// Summarize totals the given sales
func Summarize(sales []*domain.Sale) domain.SalesSummary {
	sum := domain.SalesSummary{Revenue: decimal.Zero, Average: decimal.Zero}
	for _, s := range sales {
		sum.SaleCount++
		sum.UnitsSold += s.ItemCount()
		sum.Revenue = sum.Revenue.Add(s.TotalAmount)
	}
	if sum.SaleCount > 0 {
		sum.Average = sum.Revenue.Div(decimal.NewFromInt(int64(sum.SaleCount))).Round(2)
	}
	return sum
}
