package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

// TextReader turns a stored document file into plain text.
type TextReader interface {
	ReadText(path string) (string, error)
}

// InvoiceExtractor extracts structured invoice data from document text.
type InvoiceExtractor interface {
	Extract(ctx context.Context, text string) (*models.Invoice, error)
}

// BatchProcessor drains the batch queue and runs extraction for every file
// in each batch. One failed file marks only that file; the batch itself
// completes as long as any file succeeds.
type BatchProcessor struct {
	registry  *Registry
	reader    TextReader
	extractor InvoiceExtractor
	workers   int
	queue     chan string
	logger    *zap.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(
	registry *Registry,
	reader TextReader,
	extractor InvoiceExtractor,
	workers int,
	logger *zap.Logger,
) *BatchProcessor {
	if workers < 1 {
		workers = 1
	}
	return &BatchProcessor{
		registry:  registry,
		reader:    reader,
		extractor: extractor,
		workers:   workers,
		queue:     make(chan string, 64),
		logger:    logger,
	}
}

// Name implements Worker
func (p *BatchProcessor) Name() string {
	return "batch_processor"
}

// Start launches the worker goroutines
func (p *BatchProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("batch processor already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.isRunning = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}

	p.logger.Info("BatchProcessor started", zap.Int("workers", p.workers))
	return nil
}

// Stop cancels in-flight work and waits for the worker goroutines to exit
func (p *BatchProcessor) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	p.logger.Info("BatchProcessor stopped")
}

// Enqueue schedules a registered batch for processing.
func (p *BatchProcessor) Enqueue(batchID string) error {
	select {
	case p.queue <- batchID:
		return nil
	default:
		return fmt.Errorf("batch queue full")
	}
}

// ProcessNow processes a batch synchronously (for testing)
func (p *BatchProcessor) ProcessNow(ctx context.Context, batchID string) error {
	return p.processBatch(ctx, batchID)
}

func (p *BatchProcessor) run(worker int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case batchID := <-p.queue:
			if err := p.processBatch(p.ctx, batchID); err != nil {
				p.logger.Error("Failed to process batch",
					zap.Int("worker", worker),
					zap.String("batch_id", batchID),
					zap.Error(err))
			}
		}
	}
}

// processBatch runs extraction for every file of one batch.
func (p *BatchProcessor) processBatch(ctx context.Context, batchID string) error {
	paths, err := p.registry.Paths(batchID)
	if err != nil {
		return err
	}
	if err := p.registry.MarkProcessing(batchID); err != nil {
		return err
	}

	p.logger.Info("Processing batch",
		zap.String("batch_id", batchID),
		zap.Int("files", len(paths)))

	for i, path := range paths {
		result := p.processFile(ctx, path)
		if err := p.registry.SetFileResult(batchID, i, result); err != nil {
			return err
		}
	}

	return p.registry.Complete(batchID)
}

// processFile extracts one document. Errors become a failed file result
// instead of propagating.
func (p *BatchProcessor) processFile(ctx context.Context, path string) models.FileResult {
	result := models.FileResult{Filename: filepath.Base(path)}

	text, err := p.reader.ReadText(path)
	if err != nil {
		p.logger.Warn("Failed to read document",
			zap.String("path", path),
			zap.Error(err))
		result.Status = models.BatchStatusFailed
		result.Error = err.Error()
		return result
	}

	inv, err := p.extractor.Extract(ctx, text)
	if err != nil {
		p.logger.Warn("Extraction failed",
			zap.String("path", path),
			zap.Error(err))
		result.Status = models.BatchStatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = models.BatchStatusCompleted
	result.Invoice = inv
	return result
}
