// internal/core/domain/product.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLowStockThreshold applies when a product has no explicit threshold
const DefaultLowStockThreshold = 10

// Product is a sellable item with a stock counter
type Product struct {
	ID                int64           `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ProductRef identifies a product by id or SKU
type ProductRef struct {
	ID  *int64
	SKU string
}

func (r ProductRef) String() string {
	if r.ID != nil {
		return fmt.Sprintf("id=%d", *r.ID)
	}
	return "sku=" + r.SKU
}

// Usable reports whether at least one identifier can be looked up.
func (r ProductRef) Usable() bool {
	return (r.ID != nil && *r.ID > 0) || strings.TrimSpace(r.SKU) != ""
}

// Validate performs domain validation on the product
func (p *Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("sku is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	if p.Price.GreaterThan(MaxAmount) {
		return fmt.Errorf("price cannot exceed %s", MaxAmount.StringFixed(2))
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("stock_quantity cannot be negative")
	}
	if p.LowStockThreshold < 0 {
		return fmt.Errorf("low_stock_threshold cannot be negative")
	}
	if p.LowStockThreshold == 0 {
		p.LowStockThreshold = DefaultLowStockThreshold
	}
	return nil
}

// PrepareForStorage normalizes money scale and timestamps
func (p *Product) PrepareForStorage() {
	p.Price = p.Price.Round(2)

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

// CanFulfill reports whether quantity units are available
func (p *Product) CanFulfill(quantity int) bool {
	return quantity > 0 && p.StockQuantity >= quantity
}

// Deduct removes quantity units from stock. Callers must hold the
// product's lock.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return NewValidationError(-1, "quantity must be positive")
	}
	if p.StockQuantity < quantity {
		return NewInsufficientStockError(-1, p, quantity)
	}
	p.StockQuantity -= quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsLowStock reports whether stock is at or below the threshold
func (p *Product) IsLowStock() bool {
	threshold := p.LowStockThreshold
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return p.StockQuantity <= threshold
}

// Clone returns a copy safe to mutate independently
func (p *Product) Clone() *Product {
	c := *p
	return &c
}
