// internal/handlers/dashboard.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	redis_a "github.com/ammerola/salesflow-be/internal/adapters/redis_adapter"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/workers"
)

// DashboardHandler handles dashboard and report reads
type DashboardHandler struct {
	reports  ports.ReportService
	cache    ports.CacheRepository
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler. cache may be nil.
func NewDashboardHandler(reports ports.ReportService, cache ports.CacheRepository, cacheTTL time.Duration, logger *slog.Logger) *DashboardHandler {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DashboardHandler{
		reports:  reports,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With(slog.String("handler", "dashboard")),
	}
}

// GetDashboard handles GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var dashboard *domain.Dashboard
	var err error
	if h.cache != nil {
		dashboard = &domain.Dashboard{}
		err = h.cache.GetOrSet(ctx, redis_a.BuildKey(redis_a.PrefixDashboard, "main"), dashboard,
			func() (interface{}, error) { return h.reports.Dashboard(ctx) }, h.cacheTTL)
	} else {
		dashboard, err = h.reports.Dashboard(ctx)
	}
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to load dashboard")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dashboard)
}

// DailyReport handles GET /api/v1/reports/daily?date=2006-01-02. The date
// defaults to today (UTC).
func (h *DashboardHandler) DailyReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			respondError(w, h.logger, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	var report *domain.DailyReport
	var err error
	if h.cache != nil {
		report = &domain.DailyReport{}
		err = h.cache.GetOrSet(ctx, workers.DailyReportKey(day.Format(time.DateOnly)), report,
			func() (interface{}, error) { return h.reports.DailyReport(ctx, day) }, h.cacheTTL)
	} else {
		report, err = h.reports.DailyReport(ctx, day)
	}
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to build daily report")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, report)
}

// LowStock handles GET /api/v1/products/low-stock
func (h *DashboardHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := queryInt(r, "limit", 50, 1, 500)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.reports.LowStock(ctx, limit)
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to list low stock products")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// LowStockAlert handles GET /api/v1/alerts/low-stock. It returns the last
// alert confirmed by the worker, or an empty list.
func (h *DashboardHandler) LowStockAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	alert := workers.LowStockPayload{Products: []workers.LowStockItem{}}
	if h.cache != nil {
		if err := h.cache.Get(ctx, workers.LowStockAlertKey, &alert); err != nil && !errors.Is(err, redis_a.ErrCacheMiss) {
			h.logger.WarnContext(ctx, "failed to read low stock alert",
				slog.String("error", err.Error()))
		}
	}

	respondJSON(w, h.logger, http.StatusOK, alert)
}
