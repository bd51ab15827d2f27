// internal/handlers/dashboard_handler_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/mock/gomock"

	redis_a "github.com/ammerola/salesflow-be/internal/adapters/redis_adapter"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/handlers"
	"github.com/ammerola/salesflow-be/internal/workers"
	"github.com/ammerola/salesflow-be/test/helpers"
	"github.com/ammerola/salesflow-be/test/mocks"
)

func newMiniCache(t *testing.T) (*redis_a.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redis_a.NewCache(client, time.Minute, helpers.TestLogger()), mr
}

func TestDashboardHandler_GetDashboard_CachesResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	reports := mocks.NewMockReportService(ctrl)
	cache, mr := newMiniCache(t)

	dashboard := &domain.Dashboard{
		Date:  "2026-03-01",
		Today: domain.SalesSummary{SaleCount: 3, UnitsSold: 7, Revenue: decimal.RequireFromString("70.00")},
	}
	reports.EXPECT().Dashboard(gomock.Any()).Return(dashboard, nil).Times(1)

	handler := handlers.NewDashboardHandler(reports, cache, time.Minute, helpers.TestLogger())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.GetDashboard(w, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var got domain.Dashboard
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 3, got.Today.SaleCount)
		assert.True(t, got.Today.Revenue.Equal(dashboard.Today.Revenue))
	}
	assert.True(t, mr.Exists("dash:main"))
}

func TestDashboardHandler_GetDashboard_WithoutCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	reports := mocks.NewMockReportService(ctrl)
	reports.EXPECT().Dashboard(gomock.Any()).Return(&domain.Dashboard{Date: "2026-03-01"}, nil).Times(2)

	handler := handlers.NewDashboardHandler(reports, nil, time.Minute, helpers.TestLogger())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.GetDashboard(w, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestDashboardHandler_DailyReport(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(reports *mocks.MockReportService)
		expectedStatus int
	}{
		{
			name:  "explicit_date",
			query: "?date=2026-02-28",
			setupMocks: func(reports *mocks.MockReportService) {
				reports.EXPECT().
					DailyReport(gomock.Any(), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)).
					Return(&domain.DailyReport{Date: "2026-02-28"}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad_date",
			query:          "?date=28/02/2026",
			setupMocks:     func(*mocks.MockReportService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			reports := mocks.NewMockReportService(ctrl)
			tt.setupMocks(reports)
			cache, mr := newMiniCache(t)

			handler := handlers.NewDashboardHandler(reports, cache, time.Minute, helpers.TestLogger())

			w := httptest.NewRecorder()
			handler.DailyReport(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/daily"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.True(t, mr.Exists(workers.DailyReportKey("2026-02-28")))
			}
		})
	}
}

func TestDashboardHandler_LowStock(t *testing.T) {
	ctrl := gomock.NewController(t)
	reports := mocks.NewMockReportService(ctrl)
	low := helpers.CreateTestProduct(func(p *domain.Product) { p.StockQuantity = 2 })
	reports.EXPECT().LowStock(gomock.Any(), 5).Return([]*domain.Product{low}, nil)

	handler := handlers.NewDashboardHandler(reports, nil, time.Minute, helpers.TestLogger())

	w := httptest.NewRecorder()
	handler.LowStock(w, httptest.NewRequest(http.MethodGet, "/api/v1/products/low-stock?limit=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestDashboardHandler_LowStockAlert(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache, _ := newMiniCache(t)
	handler := handlers.NewDashboardHandler(mocks.NewMockReportService(ctrl), cache, time.Minute, helpers.TestLogger())

	w := httptest.NewRecorder()
	handler.LowStockAlert(w, httptest.NewRequest(http.MethodGet, "/api/v1/alerts/low-stock", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"products":[]}`, w.Body.String())

	alert := workers.LowStockPayload{Products: []workers.LowStockItem{{ProductID: 3, SKU: "SKU-3", StockQuantity: 1, Threshold: 5}}}
	require.NoError(t, cache.SetWithTTL(context.Background(), workers.LowStockAlertKey, alert, time.Minute))

	w = httptest.NewRecorder()
	handler.LowStockAlert(w, httptest.NewRequest(http.MethodGet, "/api/v1/alerts/low-stock", nil))
	var got workers.LowStockPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, alert, got)
}

func TestExportHandler_ExportSales(t *testing.T) {
	ctrl := gomock.NewController(t)
	sales := mocks.NewMockSaleService(ctrl)
	sales.EXPECT().
		SalesBetween(gomock.Any(),
			time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)).
		Return([]*domain.Sale{testSale()}, nil)

	handler := handlers.NewExportHandler(sales, helpers.TestLogger())

	w := httptest.NewRecorder()
	handler.ExportSales(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/sales.xlsx?from=2026-03-01&to=2026-03-08", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sales_20260301_20260308.xlsx")

	file, err := xlsx.OpenBinary(bytes.Clone(w.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, file.Sheets, 2)

	sheet := file.Sheets[0]
	assert.Equal(t, "Sales", sheet.Name)
	assert.Equal(t, 2, sheet.MaxRow)

	row, err := sheet.Row(1)
	require.NoError(t, err)
	assert.Equal(t, "42", row.GetCell(0).String())
	assert.Equal(t, "2", row.GetCell(7).String())
}

func TestExportHandler_ExportSales_RangeTooWide(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := handlers.NewExportHandler(mocks.NewMockSaleService(ctrl), helpers.TestLogger())

	w := httptest.NewRecorder()
	handler.ExportSales(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/sales.xlsx?from=2024-01-01&to=2026-01-01", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
