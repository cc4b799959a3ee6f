package models

import "time"

// Batch processing statuses
const (
	BatchStatusPending    = "pending"
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
)

// Batch tracks one uploaded set of documents through extraction.
type Batch struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Files       []FileResult `json:"files"`
	SubmittedAt time.Time    `json:"submitted_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// FileResult is the per-file outcome of a batch: either an extracted
// invoice or an error message. A failed file never fails the batch.
type FileResult struct {
	Filename string   `json:"filename"`
	Status   string   `json:"status"`
	Invoice  *Invoice `json:"invoice,omitempty"`
	Error    string   `json:"error,omitempty"`
}
