// internal/core/domain/import.go
package domain

import "time"

// JobStatus is the lifecycle state of a background import
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// RowError reports a file row that could not become a sale line. Row is
// the 1-based row number as shown by spreadsheet tools.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportJob is the pollable state of one sales file import
type ImportJob struct {
	ID        string        `json:"id"`
	Status    JobStatus     `json:"status"`
	FileKey   string        `json:"file_key"`
	FileName  string        `json:"file_name"`
	Actor     string        `json:"actor"`
	RowErrors []RowError    `json:"row_errors,omitempty"`
	Outcome   *BatchOutcome `json:"outcome,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Finished reports whether the job reached a terminal state
func (j *ImportJob) Finished() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
