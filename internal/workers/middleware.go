// internal/workers/middleware.go
package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/salesflow-be/internal/pkg/logger"
	"github.com/ammerola/salesflow-be/internal/pkg/metrics"
)

// Instrument logs every task and records its outcome
func Instrument(m *metrics.Metrics, log *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			if id, ok := asynq.GetTaskID(ctx); ok {
				ctx = context.WithValue(ctx, logger.ContextKeyTaskID, id)
			}

			err := next.ProcessTask(ctx, t)
			m.RecordTask(t.Type(), err)

			attrs := []any{
				slog.String("type", t.Type()),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				log.ErrorContext(ctx, "task failed", append(attrs, slog.String("error", err.Error()))...)
				return err
			}
			log.InfoContext(ctx, "task completed", attrs...)
			return nil
		})
	}
}
