package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

func ptr[T any](v T) *T { return &v }

func TestNewSaleItem_SnapshotsProduct(t *testing.T) {
	p := &domain.Product{
		ID:    4,
		SKU:   "CUP-12OZ",
		Name:  "Paper Cup 12oz",
		Price: decimal.RequireFromString("0.125"),
	}

	item := domain.NewSaleItem(p, 8)
	p.Name = "Renamed"
	p.Price = decimal.NewFromInt(9)

	assert.Equal(t, int64(4), item.ProductID)
	assert.Equal(t, "CUP-12OZ", item.ProductSKU)
	assert.Equal(t, "Paper Cup 12oz", item.ProductName)
	assert.Equal(t, "0.13", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "1.04", item.Subtotal.StringFixed(2))
}

func TestSale_TotalIsSumOfSubtotals(t *testing.T) {
	sale := domain.NewSale(time.Time{}, "", "cashier")
	assert.Equal(t, domain.SourcePOS, sale.Source)
	assert.False(t, sale.SaleDate.IsZero())
	assert.True(t, sale.TotalAmount.IsZero())

	sale.AddItem(domain.NewSaleItem(&domain.Product{ID: 1, Price: decimal.RequireFromString("10.00")}, 2))
	sale.AddItem(domain.NewSaleItem(&domain.Product{ID: 2, Price: decimal.RequireFromString("5.00")}, 1))
	assert.Equal(t, "25.00", sale.TotalAmount.StringFixed(2))
	assert.Equal(t, 3, sale.ItemCount())

	sale.TotalAmount = decimal.Zero
	total := sale.RecalculateTotal()
	assert.True(t, total.Equal(decimal.RequireFromString("25")))
	assert.True(t, sale.TotalAmount.Equal(total))
}

func TestSale_DecimalTotalsAreExact(t *testing.T) {
	sale := domain.NewSale(time.Now(), domain.SourcePOS, "")
	for i := 0; i < 10; i++ {
		sale.AddItem(domain.NewSaleItem(&domain.Product{ID: int64(i + 1), Price: decimal.RequireFromString("0.10")}, 1))
	}
	assert.True(t, sale.TotalAmount.Equal(decimal.NewFromInt(1)))
}

func TestCreateSaleRequest_Validate(t *testing.T) {
	tests := []struct {
		name     string
		req      domain.CreateSaleRequest
		wantErr  bool
		wantLine int
		errorMsg string
	}{
		{
			name: "by_id_and_by_sku",
			req: domain.CreateSaleRequest{Items: []domain.SaleLineRequest{
				{ProductID: ptr(int64(1)), Quantity: 1},
				{SKU: "MILK", Quantity: 3},
			}},
		},
		{
			name:    "empty_items_are_allowed",
			req:     domain.CreateSaleRequest{},
			wantErr: false,
		},
		{
			name:     "zero_quantity",
			req:      domain.CreateSaleRequest{Items: []domain.SaleLineRequest{{SKU: "MILK", Quantity: 0}}},
			wantErr:  true,
			wantLine: 0,
			errorMsg: "quantity must be at least 1",
		},
		{
			name: "negative_product_id_on_second_line",
			req: domain.CreateSaleRequest{Items: []domain.SaleLineRequest{
				{SKU: "MILK", Quantity: 1},
				{ProductID: ptr(int64(-2)), Quantity: 1},
			}},
			wantErr:  true,
			wantLine: 1,
			errorMsg: "product_id must be positive",
		},
		{
			name:     "blank_sku",
			req:      domain.CreateSaleRequest{Items: []domain.SaleLineRequest{{SKU: "  ", Quantity: 1}}},
			wantErr:  true,
			wantLine: 0,
			errorMsg: "product_id or sku is required",
		},
		{
			name:     "unknown_source",
			req:      domain.CreateSaleRequest{Source: "carrier_pigeon"},
			wantErr:  true,
			wantLine: -1,
			errorMsg: "unknown sale source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), tt.errorMsg)

			var se *domain.SaleError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantLine, se.Line)
		})
	}
}

func TestProduct_StockRules(t *testing.T) {
	p := &domain.Product{ID: 1, SKU: "A", StockQuantity: 3, LowStockThreshold: 1}

	assert.True(t, p.CanFulfill(3))
	assert.False(t, p.CanFulfill(4))
	assert.False(t, p.CanFulfill(0))
	assert.False(t, p.IsLowStock())

	require.NoError(t, p.Deduct(2))
	assert.Equal(t, 1, p.StockQuantity)
	assert.True(t, p.IsLowStock())

	err := p.Deduct(2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 1, p.StockQuantity, "failed deduction leaves stock untouched")

	assert.ErrorIs(t, p.Deduct(0), domain.ErrValidation)
}

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name     string
		product  domain.Product
		errorMsg string
	}{
		{name: "valid", product: domain.Product{SKU: "A", Name: "Alpha", Price: decimal.NewFromInt(1)}},
		{name: "missing_sku", product: domain.Product{Name: "Alpha"}, errorMsg: "sku is required"},
		{name: "missing_name", product: domain.Product{SKU: "A"}, errorMsg: "name is required"},
		{name: "negative_price", product: domain.Product{SKU: "A", Name: "Alpha", Price: decimal.NewFromInt(-1)}, errorMsg: "price cannot be negative"},
		{name: "price_beyond_maximum", product: domain.Product{SKU: "A", Name: "Alpha", Price: decimal.RequireFromString("10000000000.00")}, errorMsg: "price cannot exceed 9999999999.99"},
		{name: "negative_stock", product: domain.Product{SKU: "A", Name: "Alpha", StockQuantity: -1}, errorMsg: "stock_quantity cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.errorMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, domain.DefaultLowStockThreshold, tt.product.LowStockThreshold)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}
