// cmd/seeder/main_test.go
package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/test/helpers"
	"github.com/ammerola/salesflow-be/test/mocks"
)

func TestParseCatalog_CSV(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
		want    int
	}{
		{
			name: "aliases_and_blank_rows",
			data: "Code,Product,Unit Price,Stock,Threshold\nA-1,Alpha,1.50,10,2\n,,,,\nB-1,Beta,2,,\n",
			want: 2,
		},
		{name: "missing_price_column", data: "sku,name\nA,Alpha\n", wantErr: "no price column"},
		{name: "bad_price", data: "sku,name,price\nA,Alpha,cheap\n", wantErr: "row 2: invalid price"},
		{name: "negative_stock", data: "sku,name,price,stock\nA,Alpha,1,-3\n", wantErr: "row 2: stock_quantity cannot be negative"},
		{name: "duplicate_sku", data: "sku,name,price\nA,Alpha,1\na,Again,2\n", wantErr: `already listed on row 2`},
		{name: "empty", data: "", wantErr: "catalog is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseCatalog("catalog.csv", []byte(tt.data))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestParseCatalog_KeepsUnsetThreshold(t *testing.T) {
	rows, err := parseCatalog("catalog.csv", []byte("sku,name,price,stock\nA,Alpha,1.5,4\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].Product.LowStockThreshold)

	applyDefaultThreshold(rows, 7)
	assert.Equal(t, 7, rows[0].Product.LowStockThreshold)
	assert.True(t, rows[0].Product.Price.Equal(decimal.RequireFromString("1.5")))
}

func TestParseCatalog_XLSX(t *testing.T) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Catalog")
	require.NoError(t, err)
	header := sheet.AddRow()
	for _, h := range []string{"SKU", "Name", "Price", "Stock Quantity"} {
		header.AddCell().SetString(h)
	}
	row := sheet.AddRow()
	row.AddCell().SetString("MILK-OAT-1L")
	row.AddCell().SetString("Oat Milk 1L")
	row.AddCell().SetString("2.40")
	row.AddCell().SetInt(120)

	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))

	rows, err := parseCatalog("catalog.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "MILK-OAT-1L", rows[0].Product.SKU)
	assert.Equal(t, 120, rows[0].Product.StockQuantity)
}

func TestSeedProducts_Upserts(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProductRepository(ctrl)
	ctx := context.Background()

	existing := &domain.Product{ID: 9, SKU: "B-1", Name: "Old", Price: decimal.NewFromInt(1), StockQuantity: 1}

	repo.EXPECT().FindBySKU(ctx, "A-1").Return(nil, nil)
	repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	repo.EXPECT().FindBySKU(ctx, "B-1").Return(existing, nil)
	repo.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, p *domain.Product) error {
		assert.Equal(t, int64(9), p.ID)
		assert.Equal(t, "Beta", p.Name)
		assert.Equal(t, 50, p.StockQuantity)
		return nil
	})
	repo.EXPECT().FindBySKU(ctx, "C-1").Return(nil, errors.New("connection reset"))

	rows := []catalogRow{
		{Row: 2, Product: domain.Product{SKU: "A-1", Name: "Alpha", Price: decimal.NewFromInt(2)}},
		{Row: 3, Product: domain.Product{SKU: "B-1", Name: "Beta", Price: decimal.NewFromInt(3), StockQuantity: 50}},
		{Row: 4, Product: domain.Product{SKU: "C-1", Name: "Gamma", Price: decimal.NewFromInt(4)}},
	}

	created, updated, failed := seedProducts(ctx, repo, rows, helpers.TestLogger())
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 1, failed)
}
