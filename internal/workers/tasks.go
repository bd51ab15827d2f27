// internal/workers/tasks.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

const (
	TypeSalesImport      = "sales:import"
	TypeSalesSync        = "sales:sync"
	TypeLowStockAlert    = "stock:low_alert"
	TypeDailySalesReport = "report:daily_sales"
	TypeCleanupUploads   = "cleanup:uploads"
	TypeCleanupSyncLogs  = "cleanup:sync_logs"
)

// Queue names, matching ASYNQ_QUEUES
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Enqueuer is the part of *asynq.Client the API and services use
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ Enqueuer = (*asynq.Client)(nil)

// ImportPayload represents the payload for sales file imports
type ImportPayload struct {
	JobID    string `json:"job_id"`
	FileKey  string `json:"file_key"`
	FileName string `json:"file_name"`
	Actor    string `json:"actor"`
}

// SyncPayload carries a deferred offline sync. Actor travels beside the
// request because SyncRequest does not serialize it.
type SyncPayload struct {
	JobID   string             `json:"job_id"`
	Actor   string             `json:"actor"`
	Request domain.SyncRequest `json:"request"`
}

// LowStockItem is one product in a low-stock alert
type LowStockItem struct {
	ProductID     int64  `json:"product_id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stock_quantity"`
	Threshold     int    `json:"threshold"`
}

// LowStockPayload lists products that reached their threshold
type LowStockPayload struct {
	Products []LowStockItem `json:"products"`
}

// DailyReportPayload selects the UTC day to report on. An empty Date
// means yesterday.
type DailyReportPayload struct {
	Date string `json:"date,omitempty"`
}

// NewImportTask builds a sales:import task
func NewImportTask(p ImportPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal import payload: %w", err)
	}
	return asynq.NewTask(TypeSalesImport, b,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour)), nil
}

// NewSyncTask builds a sales:sync task
func NewSyncTask(p SyncPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync payload: %w", err)
	}
	return asynq.NewTask(TypeSalesSync, b,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour)), nil
}

// NewDailyReportTask builds a report:daily_sales task
func NewDailyReportTask(day time.Time) (*asynq.Task, error) {
	p := DailyReportPayload{}
	if !day.IsZero() {
		p.Date = day.UTC().Format(time.DateOnly)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report payload: %w", err)
	}
	return asynq.NewTask(TypeDailySalesReport, b, asynq.Queue(QueueLow), asynq.MaxRetry(2)), nil
}

// StockAlerter queues a stock:low_alert task after sales that leave
// products at or below their threshold.
type StockAlerter struct {
	client Enqueuer
	logger *slog.Logger
}

var _ ports.StockAlerter = (*StockAlerter)(nil)

// NewStockAlerter creates an alerter that enqueues through client
func NewStockAlerter(client Enqueuer, logger *slog.Logger) *StockAlerter {
	return &StockAlerter{
		client: client,
		logger: logger.With(slog.String("component", "stock_alerter")),
	}
}

// LowStock enqueues one alert task for the given products. Identical
// alerts within a minute are collapsed.
func (a *StockAlerter) LowStock(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	var payload LowStockPayload
	for _, p := range products {
		payload.Products = append(payload.Products, LowStockItem{
			ProductID:     p.ID,
			SKU:           p.SKU,
			Name:          p.Name,
			StockQuantity: p.StockQuantity,
			Threshold:     p.LowStockThreshold,
		})
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal low stock payload: %w", err)
	}

	task := asynq.NewTask(TypeLowStockAlert, b,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(5),
		asynq.Unique(time.Minute))

	info, err := a.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("failed to enqueue low stock alert: %w", err)
	}

	a.logger.DebugContext(ctx, "low stock alert queued",
		slog.String("task_id", info.ID),
		slog.Int("products", len(products)))
	return nil
}
