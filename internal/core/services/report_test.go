// internal/core/services/report_test.go
package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/services"
	"github.com/ammerola/salesflow-be/test/helpers"
	"github.com/ammerola/salesflow-be/test/mocks"
)

func TestReportService_DailyReportOnMemoryStore(t *testing.T) {
	ctx := context.Background()
	env := newMemoryEnv(t)
	beans := env.addProduct(t, "BEANS", "12.50", 20)
	milk := env.addProduct(t, "MILK", "2.00", 20)

	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	sell := func(at time.Time, items ...domain.SaleLineRequest) {
		t.Helper()
		_, err := env.service.CreateSale(ctx, &domain.CreateSaleRequest{SaleDate: &at, Items: items})
		require.NoError(t, err)
	}
	sell(day.Add(9*time.Hour), line(beans.ID, 1), line(milk.ID, 2))
	sell(day.Add(23*time.Hour+59*time.Minute), line(milk.ID, 3))
	sell(day.AddDate(0, 0, 1), line(beans.ID, 4))
	sell(day.Add(-time.Minute), line(beans.ID, 1))

	reports := services.NewReportService(env.store.Sales(), env.store.Reports(), env.products, 0, helpers.TestLogger())

	report, err := reports.DailyReport(ctx, day.Add(15*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "2026-03-09", report.Date)
	assert.Equal(t, 2, report.Summary.SaleCount)
	assert.Equal(t, 6, report.Summary.UnitsSold)
	assert.Equal(t, "22.50", report.Summary.Revenue.StringFixed(2))
	assert.Equal(t, "11.25", report.Summary.Average.StringFixed(2))

	require.Len(t, report.TopProducts, 2)
	assert.Equal(t, "MILK", report.TopProducts[0].SKU)
	assert.Equal(t, 5, report.TopProducts[0].Quantity)
	assert.Equal(t, "10.00", report.TopProducts[0].Revenue.StringFixed(2))
	assert.Equal(t, "BEANS", report.TopProducts[1].SKU)
}

func TestReportService_Dashboard(t *testing.T) {
	ctrl := gomock.NewController(t)
	sales := mocks.NewMockSaleRepository(ctrl)
	reports := mocks.NewMockReportRepository(ctrl)
	products := mocks.NewMockProductRepository(ctrl)

	sales.EXPECT().ListByDateRange(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, from, to time.Time) ([]*domain.Sale, error) {
			assert.Equal(t, 24*time.Hour, to.Sub(from))
			assert.Zero(t, from.Hour())
			return []*domain.Sale{
				{TotalAmount: decimal.RequireFromString("10.00"), Items: []domain.SaleItem{{Quantity: 2}}},
				{TotalAmount: decimal.RequireFromString("5.01"), Items: []domain.SaleItem{{Quantity: 1}}},
			}, nil
		})
	reports.EXPECT().TopProducts(gomock.Any(), gomock.Any(), gomock.Any(), 5).
		Return([]domain.ProductSalesTotal{{ProductID: 1, Quantity: 3}}, nil)
	products.EXPECT().ListLowStock(gomock.Any(), 7).Return(nil, nil)

	service := services.NewReportService(sales, reports, products, 7, helpers.TestLogger())

	dash, err := service.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, dash.Today.SaleCount)
	assert.Equal(t, 3, dash.Today.UnitsSold)
	assert.Equal(t, "15.01", dash.Today.Revenue.StringFixed(2))
	assert.Equal(t, "7.51", dash.Today.Average.StringFixed(2))
	assert.Len(t, dash.TopProducts, 1)
	assert.NotNil(t, dash.LowStock)
	assert.Equal(t, time.Now().UTC().Format(time.DateOnly), dash.Date)
}

func TestReportService_Errors(t *testing.T) {
	tests := []struct {
		name          string
		run           func(s *services.ReportService) error
		setupMocks    func(sales *mocks.MockSaleRepository, reports *mocks.MockReportRepository, products *mocks.MockProductRepository)
		expectedError error
		errorContains string
	}{
		{
			name: "dashboard_sales_failure",
			run: func(s *services.ReportService) error {
				_, err := s.Dashboard(context.Background())
				return err
			},
			setupMocks: func(sales *mocks.MockSaleRepository, _ *mocks.MockReportRepository, _ *mocks.MockProductRepository) {
				sales.EXPECT().ListByDateRange(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
			},
			errorContains: "failed to list today's sales",
		},
		{
			name: "daily_report_ranking_failure",
			run: func(s *services.ReportService) error {
				_, err := s.DailyReport(context.Background(), time.Now())
				return err
			},
			setupMocks: func(sales *mocks.MockSaleRepository, reports *mocks.MockReportRepository, _ *mocks.MockProductRepository) {
				sales.EXPECT().ListByDateRange(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
				reports.EXPECT().TopProducts(gomock.Any(), gomock.Any(), gomock.Any(), 10).Return(nil, errors.New("db down"))
			},
			errorContains: "failed to rank products",
		},
		{
			name: "low_stock_needs_positive_limit",
			run: func(s *services.ReportService) error {
				_, err := s.LowStock(context.Background(), 0)
				return err
			},
			setupMocks:    func(*mocks.MockSaleRepository, *mocks.MockReportRepository, *mocks.MockProductRepository) {},
			expectedError: domain.ErrValidation,
		},
		{
			name: "low_stock_failure",
			run: func(s *services.ReportService) error {
				_, err := s.LowStock(context.Background(), 3)
				return err
			},
			setupMocks: func(_ *mocks.MockSaleRepository, _ *mocks.MockReportRepository, products *mocks.MockProductRepository) {
				products.EXPECT().ListLowStock(gomock.Any(), 3).Return(nil, errors.New("db down"))
			},
			errorContains: "failed to list low stock products",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			sales := mocks.NewMockSaleRepository(ctrl)
			reports := mocks.NewMockReportRepository(ctrl)
			products := mocks.NewMockProductRepository(ctrl)
			tt.setupMocks(sales, reports, products)

			service := services.NewReportService(sales, reports, products, 0, helpers.TestLogger())
			err := tt.run(service)
			require.Error(t, err)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			}
			if tt.errorContains != "" {
				assert.Contains(t, err.Error(), tt.errorContains)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	empty := services.Summarize(nil)
	assert.Zero(t, empty.SaleCount)
	assert.True(t, empty.Revenue.IsZero())
	assert.True(t, empty.Average.IsZero())

	sum := services.Summarize([]*domain.Sale{
		{TotalAmount: decimal.RequireFromString("0.10"), Items: []domain.SaleItem{{Quantity: 1}}},
		{TotalAmount: decimal.RequireFromString("0.20"), Items: []domain.SaleItem{{Quantity: 1}, {Quantity: 4}}},
	})
	assert.Equal(t, 2, sum.SaleCount)
	assert.Equal(t, 6, sum.UnitsSold)
	assert.True(t, sum.Revenue.Equal(decimal.RequireFromString("0.30")), "decimal sums are exact")
	assert.Equal(t, "0.15", sum.Average.StringFixed(2))
}
