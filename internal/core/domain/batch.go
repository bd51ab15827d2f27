// internal/core/domain/batch.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus is the overall result of a reconciliation run
type BatchStatus string

// Batch statuses
const (
	BatchSuccess BatchStatus = "SUCCESS"
	BatchPartial BatchStatus = "PARTIAL"
	BatchFailed  BatchStatus = "FAILED"
)

// BatchRequest is a list of independent sales submitted together
type BatchRequest struct {
	Actor           string              `json:"actor"`
	Source          SaleSource          `json:"source"`
	ClientTimestamp *time.Time          `json:"client_timestamp,omitempty"`
	Sales           []CreateSaleRequest `json:"sales"`
}

// ItemOutcome is the result of one batch entry
type ItemOutcome struct {
	Index       int              `json:"index"`
	SaleID      int64            `json:"sale_id,omitempty"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Message     string           `json:"message,omitempty"`
	SKU         string           `json:"sku,omitempty"`
}

// Succeeded reports whether the entry produced a sale
func (o ItemOutcome) Succeeded() bool {
	return o.Reason == ""
}

// BatchOutcome summarizes a reconciliation run
type BatchOutcome struct {
	Status          BatchStatus   `json:"status"`
	Actor           string        `json:"actor"`
	Source          SaleSource    `json:"source"`
	ProcessedAt     time.Time     `json:"processed_at"`
	ClientTimestamp *time.Time    `json:"client_timestamp,omitempty"`
	Successes       []ItemOutcome `json:"successes"`
	Conflicts       []ItemOutcome `json:"conflicts"`
	// Unprocessed lists entries of an aborted batch that produced no sale:
	// the entry that failed and every entry never attempted.
	Unprocessed []ItemOutcome `json:"unprocessed,omitempty"`
}

// NewBatchOutcome builds the summary from per-index results
func NewBatchOutcome(req *BatchRequest, results []ItemOutcome, processedAt time.Time) *BatchOutcome {
	out := &BatchOutcome{
		Actor:           req.Actor,
		Source:          req.Source,
		ProcessedAt:     processedAt,
		ClientTimestamp: req.ClientTimestamp,
		Successes:       []ItemOutcome{},
		Conflicts:       []ItemOutcome{},
	}
	for _, r := range results {
		if r.Succeeded() {
			out.Successes = append(out.Successes, r)
		} else {
			out.Conflicts = append(out.Conflicts, r)
		}
	}
	out.Status = BatchSuccess
	if len(out.Conflicts) > 0 {
		out.Status = BatchPartial
	}
	return out
}

// NewAbortedBatchOutcome summarizes a batch stopped by a fatal error.
// attempted marks the indexes that ran; their sales are committed even
// though the batch failed. Entries that never ran are reported with
// ReasonNotProcessed.
func NewAbortedBatchOutcome(req *BatchRequest, results []ItemOutcome, attempted []bool, processedAt time.Time) *BatchOutcome {
	out := &BatchOutcome{
		Status:          BatchFailed,
		Actor:           req.Actor,
		Source:          req.Source,
		ProcessedAt:     processedAt,
		ClientTimestamp: req.ClientTimestamp,
		Successes:       []ItemOutcome{},
		Conflicts:       []ItemOutcome{},
		Unprocessed:     []ItemOutcome{},
	}
	for i, r := range results {
		switch {
		case !attempted[i]:
			out.Unprocessed = append(out.Unprocessed, ItemOutcome{Index: i, Reason: ReasonNotProcessed})
		case r.Succeeded():
			out.Successes = append(out.Successes, r)
		case isConflictReason(r.Reason):
			out.Conflicts = append(out.Conflicts, r)
		default:
			out.Unprocessed = append(out.Unprocessed, r)
		}
	}
	return out
}

// SyncLog is the audit entry written for every batch run
type SyncLog struct {
	ID              int64       `json:"id"`
	Actor           string      `json:"actor"`
	Source          SaleSource  `json:"source"`
	SyncTimestamp   time.Time   `json:"sync_timestamp"`
	ClientTimestamp *time.Time  `json:"client_timestamp,omitempty"`
	Status          BatchStatus `json:"status"`
	SuccessCount    int         `json:"success_count"`
	ConflictCount   int         `json:"conflict_count"`
}

// NewSyncLog derives the audit entry from an outcome
func NewSyncLog(o *BatchOutcome) *SyncLog {
	return &SyncLog{
		Actor:           o.Actor,
		Source:          o.Source,
		SyncTimestamp:   o.ProcessedAt,
		ClientTimestamp: o.ClientTimestamp,
		Status:          o.Status,
		SuccessCount:    len(o.Successes),
		ConflictCount:   len(o.Conflicts),
	}
}

// SyncRequest is an offline client's upload
type SyncRequest struct {
	Actor             string              `json:"-"`
	OfflineSales      []CreateSaleRequest `json:"offline_sales"`
	OfflineTimestamp  *time.Time          `json:"offline_timestamp,omitempty"`
	LastSyncTimestamp *time.Time          `json:"last_sync_timestamp,omitempty"`
}

// SyncResponse carries the reconciliation summary and the products the
// client must refresh
type SyncResponse struct {
	Outcome          *BatchOutcome `json:"outcome"`
	NewSyncTimestamp time.Time     `json:"new_sync_timestamp"`
	UpdatedProducts  []*Product    `json:"updated_products"`
}
