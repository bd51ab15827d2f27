// internal/handlers/sales.go
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/core/services"
	"github.com/ammerola/salesflow-be/internal/handlers/middleware"
)

const (
	maxListDays    = 366
	maxRecentLimit = 500
)

// SalesHandler handles sale creation and sales reads
type SalesHandler struct {
	sales       ports.SaleService
	reconciler  ports.BatchReconciler
	cache       ports.CacheRepository
	invalidator ports.CacheInvalidator
	recentLimit int
	cacheTTL    time.Duration
	logger      *slog.Logger
}

// SalesHandlerConfig carries the optional collaborators of SalesHandler
type SalesHandlerConfig struct {
	Cache       ports.CacheRepository // nil disables read caching
	Invalidator ports.CacheInvalidator
	RecentLimit int
	CacheTTL    time.Duration
}

// SaleListResponse wraps a list of sales with its totals
type SaleListResponse struct {
	Sales   []*domain.Sale      `json:"sales"`
	Summary domain.SalesSummary `json:"summary"`
}

// NewSalesHandler creates a new sales handler
func NewSalesHandler(sales ports.SaleService, reconciler ports.BatchReconciler, cfg SalesHandlerConfig, logger *slog.Logger) *SalesHandler {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 20
	}
	return &SalesHandler{
		sales:       sales,
		reconciler:  reconciler,
		cache:       cfg.Cache,
		invalidator: cfg.Invalidator,
		recentLimit: cfg.RecentLimit,
		cacheTTL:    cfg.CacheTTL,
		logger:      logger.With(slog.String("handler", "sales")),
	}
}

// CreateSale handles POST /api/v1/sales
func (h *SalesHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateSaleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Items) == 0 {
		respondError(w, h.logger, http.StatusBadRequest, "At least one item is required")
		return
	}
	req.Actor = middleware.Actor(ctx)
	if req.Source == "" {
		req.Source = domain.SourcePOS
	}

	sale, err := h.sales.CreateSale(ctx, &req)
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to create sale")
		return
	}
	h.invalidate(r)

	respondJSON(w, h.logger, http.StatusCreated, sale)
}

// BulkCreate handles POST /api/v1/sales/bulk
func (h *SalesHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Sales) == 0 {
		respondError(w, h.logger, http.StatusBadRequest, "At least one sale is required")
		return
	}
	req.Actor = middleware.Actor(ctx)
	if req.Source == "" {
		req.Source = domain.SourceBulkImport
	}

	outcome, err := h.reconciler.Reconcile(ctx, &req)
	if err != nil {
		if outcome != nil && len(outcome.Successes) > 0 {
			h.invalidate(r)
		}
		respondBatchError(ctx, w, h.logger, err, outcome, "Failed to process batch")
		return
	}
	if len(outcome.Successes) > 0 {
		h.invalidate(r)
	}

	respondJSON(w, h.logger, http.StatusOK, outcome)
}

// GetSale handles GET /api/v1/sales/{id}
func (h *SalesHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid sale ID format")
		return
	}

	sale, err := h.sales.GetSale(ctx, id)
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to retrieve sale")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, sale)
}

// SalesToday handles GET /api/v1/sales/today
func (h *SalesHandler) SalesToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sales, err := h.sales.SalesToday(ctx)
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to list today's sales")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, SaleListResponse{Sales: sales, Summary: services.Summarize(sales)})
}

// ListSales handles GET /api/v1/sales. It accepts either from/to or days
// (default 7).
func (h *SalesHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, hasFrom, err := queryTime(r, "from")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	to, hasTo, err := queryTime(r, "to")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	var sales []*domain.Sale
	switch {
	case hasFrom || hasTo:
		if !hasFrom || !hasTo {
			respondError(w, h.logger, http.StatusBadRequest, "from and to must be given together")
			return
		}
		sales, err = h.sales.SalesBetween(ctx, from, to)
	default:
		days, qerr := queryInt(r, "days", 7, 0, maxListDays)
		if qerr != nil {
			respondError(w, h.logger, http.StatusBadRequest, qerr.Error())
			return
		}
		sales, err = h.sales.SalesLastDays(ctx, days)
	}
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to list sales")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, SaleListResponse{Sales: sales, Summary: services.Summarize(sales)})
}

// RecentSales handles GET /api/v1/sales/recent
func (h *SalesHandler) RecentSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := queryInt(r, "limit", h.recentLimit, 1, maxRecentLimit)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	sales, err := h.sales.RecentSales(ctx, limit)
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to list recent sales")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, SaleListResponse{Sales: sales, Summary: services.Summarize(sales)})
}

// ProductHistory handles GET /api/v1/products/{id}/history
func (h *SalesHandler) ProductHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid product ID format")
		return
	}
	days, err := queryInt(r, "days", 30, 0, maxListDays)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	fetch := func() (interface{}, error) {
		return h.sales.ProductSalesHistory(ctx, id, days)
	}

	var history []domain.DailySales
	if h.cache != nil {
		key := fmt.Sprintf("sales:history:%s:%d", strconv.FormatInt(id, 10), days)
		err = h.cache.GetOrSet(ctx, key, &history, fetch, h.cacheTTL)
	} else {
		history, err = h.sales.ProductSalesHistory(ctx, id, days)
	}
	if err != nil {
		respondServiceError(ctx, w, h.logger, err, "Failed to load product history")
		return
	}
	if history == nil {
		history = []domain.DailySales{}
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"product_id": id,
		"days":       days,
		"history":    history,
	})
}

func (h *SalesHandler) invalidate(r *http.Request) {
	if h.invalidator != nil {
		h.invalidator.InvalidateSales(r.Context())
	}
}
