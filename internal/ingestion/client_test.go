package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

func makeDocs(n int) []Document {
	docs := make([]Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, Document{
			Name:    fmt.Sprintf("invoice_%d.pdf", i),
			Content: []byte("fake pdf content for testing upload progress reporting"),
		})
	}
	return docs
}

func TestUpload_RejectsOversizedBatchBeforeNetworkCall(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Upload(context.Background(), makeDocs(6), nil)

	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls), "no network call expected for an oversized batch")
}

func TestUpload_FiveFilesSucceed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		files := r.MultipartForm.File["invoices"]
		assert.Len(t, files, 5)

		resp := UploadResponse{BatchID: "batch-1"}
		for _, fh := range files {
			resp.Files = append(resp.Files, models.FileResult{Filename: fh.Filename, Status: models.BatchStatusPending})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	resp, err := client.Upload(context.Background(), makeDocs(5), nil)

	require.NoError(t, err)
	assert.Equal(t, "batch-1", resp.BatchID)
	assert.Len(t, resp.Files, 5)
}

func TestUpload_ReportsProgressUpTo100(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(UploadResponse{BatchID: "batch-2"})
	}))
	defer srv.Close()

	var last int
	var calls int
	client := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Upload(context.Background(), makeDocs(2), func(percent int) {
		assert.GreaterOrEqual(t, percent, last, "progress must be monotonic")
		last = percent
		calls++
	})

	require.NoError(t, err)
	assert.Equal(t, 100, last)
	assert.Greater(t, calls, 0)
}

func TestUpload_NonSuccessStatusCarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Upload(context.Background(), makeDocs(1), nil)

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, http.StatusBadGateway, uploadErr.StatusCode)
}

func TestProcess_ReturnsPerFileResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/invoices/process", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(32<<20))
		var results []models.FileResult
		for _, fh := range r.MultipartForm.File["invoices"] {
			results = append(results, models.FileResult{
				Filename: fh.Filename,
				Status:   models.BatchStatusCompleted,
				Invoice:  models.EmptyInvoice(),
			})
		}
		json.NewEncoder(w).Encode(results)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	results, err := client.Process(context.Background(), makeDocs(2))

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "invoice_0.pdf", results[0].Filename)
	require.NotNil(t, results[0].Invoice)
}

func TestPersist_ReturnsStoredID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/invoices", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var inv models.Invoice
		require.NoError(t, json.NewDecoder(r.Body).Decode(&inv))
		assert.Equal(t, "INV-001", inv.Invoice.InvoiceNumber)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]int64{"id": 42},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	inv := models.EmptyInvoice()
	inv.Invoice.InvoiceNumber = "INV-001"

	id, err := client.Persist(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestPersist_RejectionSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "invalid invoice: invoice_number is required",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Persist(context.Background(), models.EmptyInvoice())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoice_number is required")
}

func TestStatus_DecodesBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/invoices/status/batch-3", r.URL.Path)
		json.NewEncoder(w).Encode(models.Batch{ID: "batch-3", Status: models.BatchStatusCompleted})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	batch, err := client.Status(context.Background(), "batch-3")

	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, batch.Status)
}
