// internal/core/domain/sale.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleSource records which path created a sale
type SaleSource string

// Sale sources
const (
	SourcePOS         SaleSource = "pos"
	SourceBulkImport  SaleSource = "bulk_import"
	SourceOfflineSync SaleSource = "offline_sync"
)

// Valid reports whether s is a known source
func (s SaleSource) Valid() bool {
	switch s {
	case SourcePOS, SourceBulkImport, SourceOfflineSync:
		return true
	}
	return false
}

// Sale is an immutable record of a completed checkout
type Sale struct {
	ID          int64           `json:"id"`
	SaleDate    time.Time       `json:"sale_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Source      SaleSource      `json:"source"`
	CreatedBy   string          `json:"created_by,omitempty"`
	Items       []SaleItem      `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SaleItem is a point-in-time snapshot of one sale line. SKU, name and
// unit price are copied from the product when the sale is built.
type SaleItem struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ProductID   int64           `json:"product_id"`
	ProductSKU  string          `json:"product_sku"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// MaxAmount is the largest money value a price, subtotal or total may hold
var MaxAmount = decimal.RequireFromString("9999999999.99")

// NewSaleItem snapshots p for quantity units at its current price
func NewSaleItem(p *Product, quantity int) SaleItem {
	unitPrice := p.Price.Round(2)
	return SaleItem{
		ProductID:   p.ID,
		ProductSKU:  p.SKU,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Subtotal:    unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// NewSale starts an empty sale
func NewSale(saleDate time.Time, source SaleSource, actor string) *Sale {
	if saleDate.IsZero() {
		saleDate = time.Now().UTC()
	}
	if source == "" {
		source = SourcePOS
	}
	return &Sale{
		SaleDate:    saleDate,
		TotalAmount: decimal.Zero,
		Source:      source,
		CreatedBy:   actor,
		Items:       []SaleItem{},
	}
}

// AddItem appends a line and keeps the total in step
func (s *Sale) AddItem(item SaleItem) {
	s.Items = append(s.Items, item)
	s.TotalAmount = s.TotalAmount.Add(item.Subtotal)
}

// RecalculateTotal sets the total to the sum of item subtotals
func (s *Sale) RecalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal)
	}
	s.TotalAmount = total
	return total
}

// ItemCount returns the number of units sold
func (s *Sale) ItemCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

// SaleLineRequest asks for quantity units of one product
type SaleLineRequest struct {
	ProductID *int64 `json:"product_id,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Ref returns the product reference of the line
func (l SaleLineRequest) Ref() ProductRef {
	return ProductRef{ID: l.ProductID, SKU: l.SKU}
}

// Validate checks the line shape. line is the zero-based index used in
// the error.
func (l SaleLineRequest) Validate(line int) error {
	if l.Quantity < 1 {
		return NewValidationError(line, "quantity must be at least 1")
	}
	if l.ProductID != nil && *l.ProductID <= 0 {
		return NewValidationError(line, "product_id must be positive")
	}
	if !l.Ref().Usable() {
		return NewValidationError(line, "product_id or sku is required")
	}
	return nil
}

// CreateSaleRequest is the input to the sale builder
type CreateSaleRequest struct {
	Items    []SaleLineRequest `json:"items"`
	SaleDate *time.Time        `json:"sale_date,omitempty"`
	Source   SaleSource        `json:"source,omitempty"`
	Actor    string            `json:"-"`
}

// Validate checks every line
func (r *CreateSaleRequest) Validate() error {
	if r.Source != "" && !r.Source.Valid() {
		return NewValidationError(-1, "unknown sale source %q", r.Source)
	}
	for i, line := range r.Items {
		if err := line.Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// DailySales is one row of a product sales history
type DailySales struct {
	Date     string `json:"date"` // 2006-01-02
	Quantity int    `json:"quantity"`
}
