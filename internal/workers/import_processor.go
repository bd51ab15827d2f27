// internal/workers/import_processor.go
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
	"github.com/ammerola/salesflow-be/internal/pkg/logger"
)

// defaultImportChunk keeps each reconcile call under the batch size limit
const defaultImportChunk = 500

// ImportProcessor turns uploaded sales files into reconciled batches
type ImportProcessor struct {
	reconciler ports.BatchReconciler
	products   ports.ProductRepository
	storage    ports.FileStorage
	jobs       ports.JobStore
	cache      ports.CacheInvalidator
	chunkSize  int
	logger     *slog.Logger
}

// NewImportProcessor creates a new import processor. chunkSize should not
// exceed the reconciler's batch limit.
func NewImportProcessor(
	reconciler ports.BatchReconciler,
	products ports.ProductRepository,
	storage ports.FileStorage,
	jobs ports.JobStore,
	cache ports.CacheInvalidator,
	chunkSize int,
	logger *slog.Logger,
) *ImportProcessor {
	if chunkSize <= 0 {
		chunkSize = defaultImportChunk
	}
	return &ImportProcessor{
		reconciler: reconciler,
		products:   products,
		storage:    storage,
		jobs:       jobs,
		cache:      cache,
		chunkSize:  chunkSize,
		logger:     logger.With(slog.String("processor", "sales_import")),
	}
}

// ProcessImport handles sales:import tasks
func (p *ImportProcessor) ProcessImport(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	var payload ImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	ctx = logger.WithJobID(ctx, payload.JobID)

	p.logger.InfoContext(ctx, "processing sales import",
		slog.String("file_key", payload.FileKey),
		slog.String("file_name", payload.FileName))

	job := loadJob(ctx, p.jobs, payload.JobID, func() *domain.ImportJob {
		return &domain.ImportJob{
			ID:       payload.JobID,
			FileKey:  payload.FileKey,
			FileName: payload.FileName,
			Actor:    payload.Actor,
		}
	})
	job.Status = domain.JobProcessing
	saveJob(ctx, p.jobs, job, p.logger)

	data, err := p.storage.Download(ctx, payload.FileKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return failJob(ctx, p.jobs, job, fmt.Errorf("uploaded file is gone: %w", err), false, p.logger)
		}
		return failJob(ctx, p.jobs, job, fmt.Errorf("failed to download file: %w", err), true, p.logger)
	}

	rows, err := parseSalesFile(payload.FileName, data)
	if err != nil {
		return failJob(ctx, p.jobs, job, err, false, p.logger)
	}

	if err := p.resolveNames(ctx, rows); err != nil {
		return failJob(ctx, p.jobs, job, err, true, p.logger)
	}

	valid, rowErrs := splitRows(rows)
	requests, sourceRows := groupRows(valid, payload.Actor)

	if len(requests) > 0 {
		// Retrying after this point could record sales twice.
		outcome, err := p.reconcile(ctx, payload.Actor, requests)
		if outcome != nil {
			job.Outcome = outcome
			rowErrs = append(rowErrs, conflictRowErrors(outcome, sourceRows)...)
			if p.cache != nil && len(outcome.Successes) > 0 {
				p.cache.InvalidateSales(ctx)
			}
		}
		if err != nil {
			job.RowErrors = rowErrs
			return failJob(ctx, p.jobs, job, err, false, p.logger)
		}
	} else {
		job.Error = "file contains no importable rows"
	}

	job.RowErrors = rowErrs
	job.Status = domain.JobCompleted
	saveJob(ctx, p.jobs, job, p.logger)

	if err := p.storage.Delete(ctx, payload.FileKey); err != nil {
		p.logger.WarnContext(ctx, "failed to delete imported file",
			slog.String("file_key", payload.FileKey),
			slog.String("error", err.Error()))
	}

	p.logger.InfoContext(ctx, "sales import completed",
		slog.Int("rows", len(rows)),
		slog.Int("sales", len(requests)),
		slog.Int("row_errors", len(rowErrs)),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// resolveNames fills in product ids for rows identified only by name
func (p *ImportProcessor) resolveNames(ctx context.Context, rows []importRow) error {
	cache := make(map[string]int64)
	for i := range rows {
		row := &rows[i]
		if row.Err != nil || row.Line.ProductID != nil || row.Line.SKU != "" || row.Name == "" {
			continue
		}
		if id, ok := cache[row.Name]; ok {
			row.Line.ProductID = &id
			continue
		}

		product, err := p.products.FindByName(ctx, row.Name)
		switch {
		case err == nil && product != nil:
			id := product.ID
			cache[row.Name] = id
			row.Line.ProductID = &id
		case err == nil:
			row.Err = fmt.Errorf("product %q not found", row.Name)
		case errors.Is(err, domain.ErrValidation):
			row.Err = fmt.Errorf("product name %q is ambiguous, use sku", row.Name)
		default:
			return fmt.Errorf("failed to resolve product %q: %w", row.Name, err)
		}
	}
	return nil
}

// reconcile runs requests in chunks and merges the outcomes with indexes
// relative to the whole file. If a chunk aborts, the merged FAILED outcome
// is returned with the error and later chunks count as not processed.
func (p *ImportProcessor) reconcile(ctx context.Context, actor string, requests []domain.CreateSaleRequest) (*domain.BatchOutcome, error) {
	req := &domain.BatchRequest{Actor: actor, Source: domain.SourceBulkImport}
	ordered := make([]domain.ItemOutcome, len(requests))
	attempted := make([]bool, len(requests))

	for offset := 0; offset < len(requests); offset += p.chunkSize {
		end := min(offset+p.chunkSize, len(requests))
		out, err := p.reconciler.Reconcile(ctx, &domain.BatchRequest{
			Actor:  actor,
			Source: domain.SourceBulkImport,
			Sales:  requests[offset:end],
		})
		if out != nil {
			for _, list := range [][]domain.ItemOutcome{out.Successes, out.Conflicts, out.Unprocessed} {
				for _, o := range list {
					if o.Reason == domain.ReasonNotProcessed {
						continue
					}
					o.Index += offset
					ordered[o.Index] = o
					attempted[o.Index] = true
				}
			}
		}
		if err != nil {
			err = fmt.Errorf("reconcile sales %d-%d: %w", offset, end-1, err)
			if out == nil && offset == 0 {
				return nil, err
			}
			return domain.NewAbortedBatchOutcome(req, ordered, attempted, time.Now().UTC()), err
		}
	}

	return domain.NewBatchOutcome(req, ordered, time.Now().UTC()), nil
}

// conflictRowErrors maps batch conflicts back to the file rows that formed
// each sale.
func conflictRowErrors(outcome *domain.BatchOutcome, sourceRows [][]int) []domain.RowError {
	var rowErrs []domain.RowError
	for _, c := range outcome.Conflicts {
		for _, row := range sourceRows[c.Index] {
			rowErrs = append(rowErrs, domain.RowError{Row: row, Message: c.Message})
		}
	}
	return rowErrs
}

// loadJob returns the stored job or a fresh one when it expired
func loadJob(ctx context.Context, jobs ports.JobStore, id string, fresh func() *domain.ImportJob) *domain.ImportJob {
	job, err := jobs.Get(ctx, id)
	if err != nil {
		return fresh()
	}
	return job
}

func saveJob(ctx context.Context, jobs ports.JobStore, job *domain.ImportJob, log *slog.Logger) {
	if err := jobs.Save(ctx, job); err != nil {
		log.WarnContext(ctx, "failed to save job status",
			slog.String("status", string(job.Status)),
			slog.String("error", err.Error()))
	}
}

// failJob marks the job failed unless asynq will retry it. Non-retryable
// failures are wrapped with asynq.SkipRetry.
func failJob(ctx context.Context, jobs ports.JobStore, job *domain.ImportJob, cause error, retryable bool, log *slog.Logger) error {
	if retryable && !lastAttempt(ctx) {
		return cause
	}

	job.Status = domain.JobFailed
	job.Error = cause.Error()
	saveJob(ctx, jobs, job, log)

	log.ErrorContext(ctx, "job failed", slog.String("error", cause.Error()))
	if retryable {
		return cause
	}
	return fmt.Errorf("%w: %w", cause, asynq.SkipRetry)
}

func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried >= maxRetry
}
