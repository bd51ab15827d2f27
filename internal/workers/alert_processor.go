// internal/workers/alert_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// AlertProcessor handles low stock notifications
type AlertProcessor struct {
	products ports.ProductRepository
	cache    ports.CacheRepository
	ttl      time.Duration
	logger   *slog.Logger
}

// LowStockAlertKey holds the latest confirmed alert for the dashboard
const LowStockAlertKey = "alert:low_stock"

// NewAlertProcessor creates a new alert processor. cache may be nil when
// redis is not configured.
func NewAlertProcessor(products ports.ProductRepository, cache ports.CacheRepository, logger *slog.Logger) *AlertProcessor {
	return &AlertProcessor{
		products: products,
		cache:    cache,
		ttl:      24 * time.Hour,
		logger:   logger.With(slog.String("processor", "stock_alert")),
	}
}

// ProcessLowStock re-reads each product and reports those still at or
// below their threshold. Products restocked since the sale are ignored.
func (p *AlertProcessor) ProcessLowStock(ctx context.Context, t *asynq.Task) error {
	var payload LowStockPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	confirmed := make([]LowStockItem, 0, len(payload.Products))
	for _, item := range payload.Products {
		product, err := p.products.FindByID(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to reload product %d: %w", item.ProductID, err)
		}
		if product == nil || !product.IsLowStock() {
			continue
		}

		confirmed = append(confirmed, LowStockItem{
			ProductID:     product.ID,
			SKU:           product.SKU,
			Name:          product.Name,
			StockQuantity: product.StockQuantity,
			Threshold:     product.LowStockThreshold,
		})
		p.logger.WarnContext(ctx, "product stock low",
			slog.Int64("product_id", product.ID),
			slog.String("sku", product.SKU),
			slog.Int("stock_quantity", product.StockQuantity),
			slog.Int("threshold", product.LowStockThreshold))
	}

	if len(confirmed) == 0 || p.cache == nil {
		return nil
	}
	if err := p.cache.SetWithTTL(ctx, LowStockAlertKey, LowStockPayload{Products: confirmed}, p.ttl); err != nil {
		p.logger.WarnContext(ctx, "failed to store low stock alert",
			slog.String("error", err.Error()))
	}
	return nil
}
