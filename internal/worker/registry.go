package worker

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

// ErrBatchNotFound is returned when a batch id is not registered.
var ErrBatchNotFound = fmt.Errorf("batch not found")

type batchEntry struct {
	batch *models.Batch
	paths []string
}

// Registry is the in-memory index of uploaded batches. Entries live for the
// lifetime of the process; status polling reads from here.
type Registry struct {
	mu      sync.RWMutex
	batches map[string]*batchEntry
}

// NewRegistry creates an empty batch registry
func NewRegistry() *Registry {
	return &Registry{batches: make(map[string]*batchEntry)}
}

// Create registers a new pending batch for the given stored file paths and
// returns its generated id.
func (r *Registry) Create(paths []string) *models.Batch {
	files := make([]models.FileResult, len(paths))
	for i, p := range paths {
		files[i] = models.FileResult{
			Filename: filepath.Base(p),
			Status:   models.BatchStatusPending,
		}
	}

	batch := &models.Batch{
		ID:          uuid.New().String(),
		Status:      models.BatchStatusPending,
		Files:       files,
		SubmittedAt: time.Now(),
	}

	r.mu.Lock()
	r.batches[batch.ID] = &batchEntry{
		batch: batch,
		paths: append([]string(nil), paths...),
	}
	r.mu.Unlock()

	return snapshot(batch)
}

// Get returns a copy of the batch with the given id.
func (r *Registry) Get(id string) (*models.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return snapshot(entry.batch), nil
}

// Paths returns the stored file paths of a batch in upload order.
func (r *Registry) Paths(id string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return append([]string(nil), entry.paths...), nil
}

// MarkProcessing transitions a batch to the processing state.
func (r *Registry) MarkProcessing(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.batches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	entry.batch.Status = models.BatchStatusProcessing
	return nil
}

// SetFileResult records the outcome of one file in a batch.
func (r *Registry) SetFileResult(id string, index int, result models.FileResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.batches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if index < 0 || index >= len(entry.batch.Files) {
		return fmt.Errorf("file index %d out of range for batch %s", index, id)
	}
	entry.batch.Files[index] = result
	return nil
}

// Complete finalizes a batch. The batch fails only when every file failed;
// a partially failed batch still completes.
func (r *Registry) Complete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.batches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}

	status := models.BatchStatusCompleted
	if len(entry.batch.Files) > 0 {
		allFailed := true
		for _, f := range entry.batch.Files {
			if f.Status != models.BatchStatusFailed {
				allFailed = false
				break
			}
		}
		if allFailed {
			status = models.BatchStatusFailed
		}
	}

	now := time.Now()
	entry.batch.Status = status
	entry.batch.CompletedAt = &now
	return nil
}

func snapshot(b *models.Batch) *models.Batch {
	cp := *b
	cp.Files = append([]models.FileResult(nil), b.Files...)
	if b.CompletedAt != nil {
		at := *b.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
