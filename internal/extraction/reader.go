package extraction

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DocumentReader turns uploaded documents into plain text for extraction.
// PDFs go through mupdf; plain-text files are read directly.
type DocumentReader struct {
	logger *zap.Logger
}

// NewDocumentReader creates a new document reader
func NewDocumentReader(logger *zap.Logger) *DocumentReader {
	return &DocumentReader{logger: logger}
}

// ReadText extracts the text content of a document file.
func (r *DocumentReader) ReadText(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("document not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return r.readPDF(path)
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read document: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported document type: %s", ext)
	}
}

// readPDF concatenates the text of every page.
func (r *DocumentReader) readPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	pageCount := doc.NumPage()

	r.logger.Debug("Reading PDF", zap.String("path", path), zap.Int("pages", pageCount))

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		text, err := doc.Text(pageNum)
		if err != nil {
			r.logger.Warn("Failed to read PDF page",
				zap.String("path", path),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no text extracted from PDF: %s", path)
	}

	return sb.String(), nil
}
