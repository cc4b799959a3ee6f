package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
	"github.com/invoicedesk/invoicedesk/internal/reconcile"
	"github.com/invoicedesk/invoicedesk/internal/repository"
	"github.com/invoicedesk/invoicedesk/internal/worker"
)

// multipartField is the repeated form field carrying batch documents.
const multipartField = "invoices"

// BatchQueue schedules a registered batch for background extraction.
type BatchQueue interface {
	Enqueue(batchID string) error
}

// Persister saves a finalized invoice and returns its stored row id.
type Persister interface {
	Persist(ctx context.Context, inv *models.Invoice) (int64, error)
}

// Retriever reads persisted invoices back.
type Retriever interface {
	ListInvoices(ctx context.Context) ([]*models.InvoiceSummary, error)
	GetInvoiceDetail(ctx context.Context, id int64) (*models.Invoice, error)
}

// Exporter writes the invoice book as an xlsx workbook.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}

// SupplierLister backs the supplier picker of the review UI.
type SupplierLister interface {
	List() ([]*models.Party, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	registry      *worker.Registry
	queue         BatchQueue
	reader        worker.TextReader
	extractor     worker.InvoiceExtractor
	persister     Persister
	retriever     Retriever
	exporter      Exporter
	suppliers     SupplierLister
	uploadDir     string
	maxBatchFiles int
	logger        *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	registry *worker.Registry,
	queue BatchQueue,
	reader worker.TextReader,
	extractor worker.InvoiceExtractor,
	persister Persister,
	retriever Retriever,
	exporter Exporter,
	suppliers SupplierLister,
	uploadDir string,
	maxBatchFiles int,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		registry:      registry,
		queue:         queue,
		reader:        reader,
		extractor:     extractor,
		persister:     persister,
		retriever:     retriever,
		exporter:      exporter,
		suppliers:     suppliers,
		uploadDir:     uploadDir,
		maxBatchFiles: maxBatchFiles,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// UploadResponse is the ingestion wire shape: the assigned batch id and the
// initial per-file states. The ingestion endpoints return their payloads
// unwrapped so the upload CLI can decode them directly.
type UploadResponse struct {
	BatchID string              `json:"batch_id"`
	Files   []models.FileResult `json:"files"`
}

// SaveResponse carries the stored invoice row id after a save.
type SaveResponse struct {
	ID int64 `json:"id"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// UploadBatch handles POST /api/invoices/upload. Oversized batches are
// rejected before any file is written.
func (h *Handlers) UploadBatch(c *gin.Context) {
	files, ok := h.batchFiles(c)
	if !ok {
		return
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		dst := filepath.Join(h.uploadDir, uuid.New().String()+"_"+filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, dst); err != nil {
			h.logger.Error("Failed to save uploaded file",
				zap.String("filename", file.Filename),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store uploaded file"})
			return
		}
		paths = append(paths, dst)
	}

	batch := h.registry.Create(paths)
	if err := h.queue.Enqueue(batch.ID); err != nil {
		h.logger.Error("Failed to enqueue batch",
			zap.String("batch_id", batch.ID),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "processing queue is full"})
		return
	}

	h.logger.Info("Batch accepted",
		zap.String("batch_id", batch.ID),
		zap.Int("files", len(paths)))

	c.JSON(http.StatusAccepted, UploadResponse{BatchID: batch.ID, Files: batch.Files})
}

// ProcessBatch handles POST /api/invoices/process: the same multipart shape
// as upload, extracted synchronously. A failed file yields an error slot in
// the result array, never a failed request.
func (h *Handlers) ProcessBatch(c *gin.Context) {
	files, ok := h.batchFiles(c)
	if !ok {
		return
	}

	results := make([]models.FileResult, 0, len(files))
	for _, file := range files {
		results = append(results, h.extractOne(c.Request.Context(), file))
	}

	c.JSON(http.StatusOK, results)
}

// BatchStatus handles GET /api/invoices/status/:id
func (h *Handlers) BatchStatus(c *gin.Context) {
	batch, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	c.JSON(http.StatusOK, batch)
}

// SaveInvoice handles POST /api/invoices and PUT /api/invoices/:id. Both
// paths run the same reconciliation: the invoice_number decides whether a
// row is updated or created.
func (h *Handlers) SaveInvoice(c *gin.Context) {
	var inv models.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid invoice body",
		})
		return
	}

	if idStr := c.Param("id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "invalid invoice ID",
			})
			return
		}
		inv.ID = id
	}

	id, err := h.persister.Persist(c.Request.Context(), &inv)
	if err != nil {
		if errors.Is(err, reconcile.ErrInvalidInvoice) {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}
		h.logger.Error("Failed to save invoice",
			zap.String("invoice_number", inv.Invoice.InvoiceNumber),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to save invoice",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    SaveResponse{ID: id},
	})
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	summaries, err := h.retriever.ListInvoices(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve invoices",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    summaries,
	})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid invoice ID",
		})
		return
	}

	inv, err := h.retriever.GetInvoiceDetail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, Response{
				Success: false,
				Error:   "invoice not found",
			})
			return
		}
		h.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve invoice",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    inv,
	})
}

// ExportInvoices handles GET /api/invoices/export
func (h *Handlers) ExportInvoices(c *gin.Context) {
	filename := fmt.Sprintf("invoices_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.exporter.Export(c.Request.Context(), c.Writer); err != nil {
		h.logger.Error("Failed to export invoices", zap.Error(err))
		// Headers are already written; nothing sensible to send but abort
		c.Abort()
	}
}

// ListSuppliers handles GET /api/suppliers
func (h *Handlers) ListSuppliers(c *gin.Context) {
	parties, err := h.suppliers.List()
	if err != nil {
		h.logger.Error("Failed to list suppliers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve suppliers",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    parties,
	})
}

// batchFiles parses the multipart batch and enforces the file cap before
// any file is read or stored.
func (h *Handlers) batchFiles(c *gin.Context) ([]*multipart.FileHeader, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return nil, false
	}

	files := form.File[multipartField]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files in batch"})
		return nil, false
	}
	if len(files) > h.maxBatchFiles {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("maximum %d files allowed per batch", h.maxBatchFiles),
		})
		return nil, false
	}
	return files, true
}

// extractOne runs reader+extractor for a single uploaded file through a
// temporary copy in the upload dir.
func (h *Handlers) extractOne(ctx context.Context, file *multipart.FileHeader) models.FileResult {
	result := models.FileResult{Filename: filepath.Base(file.Filename)}

	tmp := filepath.Join(h.uploadDir, "tmp_"+uuid.New().String()+"_"+filepath.Base(file.Filename))
	if err := saveMultipartFile(file, tmp); err != nil {
		h.logger.Warn("Failed to stage uploaded file",
			zap.String("filename", file.Filename),
			zap.Error(err))
		result.Status = models.BatchStatusFailed
		result.Error = "failed to store uploaded file"
		return result
	}
	defer os.Remove(tmp)

	text, err := h.reader.ReadText(tmp)
	if err != nil {
		result.Status = models.BatchStatusFailed
		result.Error = err.Error()
		return result
	}

	inv, err := h.extractor.Extract(ctx, text)
	if err != nil {
		result.Status = models.BatchStatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = models.BatchStatusCompleted
	result.Invoice = inv
	return result
}

func saveMultipartFile(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}
