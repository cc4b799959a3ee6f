package worker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

type fakeReader struct {
	failFor map[string]bool
}

func (f *fakeReader) ReadText(path string) (string, error) {
	if f.failFor[path] {
		return "", fmt.Errorf("document not found: %s", path)
	}
	return "text of " + path, nil
}

type fakeExtractor struct {
	failFor map[string]bool
}

func (f *fakeExtractor) Extract(_ context.Context, text string) (*models.Invoice, error) {
	for marker := range f.failFor {
		if strings.Contains(text, marker) {
			return nil, fmt.Errorf("completion request failed")
		}
	}
	inv := models.EmptyInvoice()
	inv.Invoice.InvoiceNumber = "INV-" + text[len(text)-5:]
	return inv, nil
}

func TestProcessNow_AllFilesSucceed(t *testing.T) {
	registry := NewRegistry()
	p := NewBatchProcessor(registry, &fakeReader{}, &fakeExtractor{}, 1, zap.NewNop())

	batch := registry.Create([]string{"/tmp/a.pdf", "/tmp/b.pdf"})
	require.NoError(t, p.ProcessNow(context.Background(), batch.ID))

	stored, err := registry.Get(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, stored.Status)
	for _, f := range stored.Files {
		assert.Equal(t, models.BatchStatusCompleted, f.Status)
		assert.NotNil(t, f.Invoice)
		assert.Empty(t, f.Error)
	}
}

func TestProcessNow_FailedFileIsIsolated(t *testing.T) {
	registry := NewRegistry()
	reader := &fakeReader{failFor: map[string]bool{"/tmp/bad.pdf": true}}
	p := NewBatchProcessor(registry, reader, &fakeExtractor{}, 1, zap.NewNop())

	batch := registry.Create([]string{"/tmp/good.pdf", "/tmp/bad.pdf"})
	require.NoError(t, p.ProcessNow(context.Background(), batch.ID))

	stored, err := registry.Get(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, stored.Status, "batch completes despite one bad file")

	assert.Equal(t, models.BatchStatusCompleted, stored.Files[0].Status)
	assert.Equal(t, models.BatchStatusFailed, stored.Files[1].Status)
	assert.Contains(t, stored.Files[1].Error, "document not found")
	assert.Nil(t, stored.Files[1].Invoice)
}

func TestProcessNow_ExtractionErrorMarksFileFailed(t *testing.T) {
	registry := NewRegistry()
	extractor := &fakeExtractor{failFor: map[string]bool{"broken": true}}
	p := NewBatchProcessor(registry, &fakeReader{}, extractor, 1, zap.NewNop())

	batch := registry.Create([]string{"/tmp/broken.pdf"})
	require.NoError(t, p.ProcessNow(context.Background(), batch.ID))

	stored, err := registry.Get(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusFailed, stored.Status, "all files failed")
	assert.Contains(t, stored.Files[0].Error, "completion request failed")
}

func TestProcessNow_UnknownBatch(t *testing.T) {
	p := NewBatchProcessor(NewRegistry(), &fakeReader{}, &fakeExtractor{}, 1, zap.NewNop())
	err := p.ProcessNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestStartEnqueueStop(t *testing.T) {
	registry := NewRegistry()
	p := NewBatchProcessor(registry, &fakeReader{}, &fakeExtractor{}, 2, zap.NewNop())

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()), "double start is rejected")
	defer p.Stop()

	batch := registry.Create([]string{"/tmp/a.pdf"})
	require.NoError(t, p.Enqueue(batch.ID))

	require.Eventually(t, func() bool {
		stored, err := registry.Get(batch.ID)
		return err == nil && stored.Status == models.BatchStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}
