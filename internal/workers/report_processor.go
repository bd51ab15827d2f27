// internal/workers/report_processor.go
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

// ReportProcessor builds the daily sales report and warms its cache entry
type ReportProcessor struct {
	reports ports.ReportService
	cache   ports.CacheRepository
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// DailyReportKey is the cache key of the report for day (2006-01-02)
func DailyReportKey(day string) string {
	return "report:daily:" + day
}

// NewReportProcessor creates a new report processor. cache may be nil.
func NewReportProcessor(reports ports.ReportService, cache ports.CacheRepository, ttl time.Duration, logger *slog.Logger) *ReportProcessor {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReportProcessor{
		reports: reports,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With(slog.String("processor", "report")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GenerateDailyReport handles report:daily_sales tasks
func (p *ReportProcessor) GenerateDailyReport(ctx context.Context, t *asynq.Task) error {
	var payload DailyReportPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	day := p.now().AddDate(0, 0, -1)
	if payload.Date != "" {
		parsed, err := time.Parse(time.DateOnly, payload.Date)
		if err != nil {
			return fmt.Errorf("invalid report date %q: %w", payload.Date, asynq.SkipRetry)
		}
		day = parsed
	}

	report, err := p.reports.DailyReport(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to build daily report: %w", err)
	}

	if p.cache != nil {
		if err := p.cache.SetWithTTL(ctx, DailyReportKey(report.Date), report, p.ttl); err != nil {
			p.logger.WarnContext(ctx, "failed to cache daily report",
				slog.String("date", report.Date),
				slog.String("error", err.Error()))
		}
	}

	p.logger.InfoContext(ctx, "daily sales report generated",
		slog.String("date", report.Date),
		slog.Int("sales", report.Summary.SaleCount),
		slog.Int("units", report.Summary.UnitsSold),
		slog.String("revenue", report.Summary.Revenue.StringFixed(2)))
	return nil
}
