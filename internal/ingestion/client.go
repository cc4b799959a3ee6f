package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

// MaxBatchFiles is the hard cap on documents per upload batch.
const MaxBatchFiles = 5

// fileField is the repeated multipart field name the server expects.
const fileField = "invoices"

// ErrBatchTooLarge is returned before any network I/O when a batch exceeds
// MaxBatchFiles.
var ErrBatchTooLarge = fmt.Errorf("maximum %d files allowed per batch", MaxBatchFiles)

// UploadError carries the HTTP status of a failed upload.
type UploadError struct {
	StatusCode int
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: status %d", e.StatusCode)
}

// Document is one file of an upload batch.
type Document struct {
	Name    string
	Content []byte
}

// LoadDocument reads a document from disk.
func LoadDocument(path string) (Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Document{Name: filepath.Base(path), Content: content}, nil
}

// ProgressFunc receives fractional upload progress in [0, 100].
type ProgressFunc func(percent int)

// Client talks to the server's invoice ingestion endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new ingestion client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UploadResponse is the server's answer to an upload request.
type UploadResponse struct {
	BatchID string              `json:"batch_id"`
	Files   []models.FileResult `json:"files"`
}

// Upload sends a batch of documents to POST /api/invoices/upload as one
// multipart request. onProgress, if non-nil, is driven by bytes
// uploaded / bytes total. Batches over MaxBatchFiles are rejected before
// any network call.
func (c *Client) Upload(ctx context.Context, docs []Document, onProgress ProgressFunc) (*UploadResponse, error) {
	body, contentType, err := c.encodeBatch(docs)
	if err != nil {
		return nil, err
	}

	var resp UploadResponse
	if err := c.postMultipart(ctx, "/api/invoices/upload", body, contentType, onProgress, &resp); err != nil {
		return nil, err
	}

	c.logger.Info("Batch uploaded",
		zap.String("batch_id", resp.BatchID),
		zap.Int("files", len(docs)))
	return &resp, nil
}

// Process sends the same multipart shape to POST /api/invoices/process and
// returns the synchronous per-file extraction results.
func (c *Client) Process(ctx context.Context, docs []Document) ([]models.FileResult, error) {
	body, contentType, err := c.encodeBatch(docs)
	if err != nil {
		return nil, err
	}

	var results []models.FileResult
	if err := c.postMultipart(ctx, "/api/invoices/process", body, contentType, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// saveEnvelope mirrors the server's management-API response wrapper.
type saveEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

// Persist saves one reviewed invoice through POST /api/invoices and returns
// the stored row id. It satisfies the review session's Persister contract.
func (c *Client) Persist(ctx context.Context, inv *models.Invoice) (int64, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return 0, fmt.Errorf("failed to encode invoice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/invoices", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("save request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var envelope saveEnvelope
	if err := json.NewDecoder(httpResp.Body).Decode(&envelope); err != nil {
		return 0, fmt.Errorf("failed to decode save response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK || !envelope.Success {
		if envelope.Error != "" {
			return 0, fmt.Errorf("save rejected: %s", envelope.Error)
		}
		return 0, &UploadError{StatusCode: httpResp.StatusCode}
	}

	c.logger.Info("Invoice saved",
		zap.String("invoice_number", inv.Invoice.InvoiceNumber),
		zap.Int64("stored_id", envelope.Data.ID))
	return envelope.Data.ID, nil
}

// Status polls GET /api/invoices/status/{id} for a previously submitted batch.
func (c *Client) Status(ctx context.Context, batchID string) (*models.Batch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/invoices/status/"+batchID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &UploadError{StatusCode: httpResp.StatusCode}
	}

	var batch models.Batch
	if err := json.NewDecoder(httpResp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &batch, nil
}

// encodeBatch builds the multipart body, enforcing the batch cap first.
func (c *Client) encodeBatch(docs []Document) (*bytes.Buffer, string, error) {
	if len(docs) > MaxBatchFiles {
		return nil, "", ErrBatchTooLarge
	}
	if len(docs) == 0 {
		return nil, "", errors.New("no documents to upload")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, doc := range docs {
		part, err := writer.CreateFormFile(fileField, doc.Name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(doc.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write form file: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

func (c *Client) postMultipart(ctx context.Context, path string, body *bytes.Buffer, contentType string, onProgress ProgressFunc, out interface{}) error {
	total := int64(body.Len())
	var reader io.Reader = body
	if onProgress != nil {
		reader = &progressReader{r: body, total: total, onProgress: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = total

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logger.Error("Upload rejected by server", zap.Int("status", httpResp.StatusCode))
		return &UploadError{StatusCode: httpResp.StatusCode}
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// progressReader reports bytes-read/bytes-total as an integer percentage.
// Reporting is advisory only; it never affects the transfer.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	last       int
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.read += int64(n)
		percent := int(p.read * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		if percent != p.last {
			p.last = percent
			p.onProgress(percent)
		}
	}
	return n, err
}
