package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

const (
	invoiceSheet  = "Invoices"
	lineItemSheet = "Line Items"
)

// InvoiceSource provides the persisted invoices to export.
type InvoiceSource interface {
	ListInvoices(ctx context.Context) ([]*models.InvoiceSummary, error)
	GetInvoiceDetail(ctx context.Context, id int64) (*models.Invoice, error)
}

// Exporter writes the invoice book as an Excel workbook: one sheet of
// invoice summaries and one sheet of line items.
type Exporter struct {
	source InvoiceSource
	logger *zap.Logger
}

// NewExporter creates a new Excel exporter
func NewExporter(source InvoiceSource, logger *zap.Logger) *Exporter {
	return &Exporter{source: source, logger: logger}
}

// Export writes the full invoice book to w in xlsx format.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	summaries, err := e.source.ListInvoices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list invoices: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", invoiceSheet)
	if _, err := f.NewSheet(lineItemSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	e.writeRow(f, invoiceSheet, 1, []interface{}{
		"Invoice Number", "Date", "Due Date", "Type", "Supplier", "Customer",
		"Total Amount", "VAT Amount", "Status",
	})
	e.writeRow(f, lineItemSheet, 1, []interface{}{
		"Invoice Number", "Item Code", "Item Name", "Quantity", "Unit Price", "Total Price",
	})

	itemRow := 2
	for i, summary := range summaries {
		detail, err := e.source.GetInvoiceDetail(ctx, summary.ID)
		if err != nil {
			return fmt.Errorf("failed to load invoice %d: %w", summary.ID, err)
		}

		e.writeRow(f, invoiceSheet, i+2, []interface{}{
			detail.Invoice.InvoiceNumber,
			detail.Invoice.Date,
			detail.Invoice.DueDate,
			detail.Invoice.Type,
			detail.Supplier.Name,
			detail.Customer.Name,
			detail.Invoice.TotalAmount,
			detail.Invoice.VATAmount,
			detail.Invoice.Status,
		})

		for _, li := range detail.Items {
			e.writeRow(f, lineItemSheet, itemRow, []interface{}{
				detail.Invoice.InvoiceNumber,
				li.ItemCode,
				li.ItemName,
				li.Quantity,
				li.UnitPrice,
				li.TotalPrice,
			})
			itemRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Invoice book exported",
		zap.Int("invoices", len(summaries)),
		zap.Int("line_items", itemRow-2))

	return nil
}

// writeRow sets one row of cells starting at column A.
func (e *Exporter) writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			e.logger.Warn("Failed to compute cell name",
				zap.Int("col", col+1),
				zap.Int("row", row),
				zap.Error(err))
			continue
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			e.logger.Warn("Failed to set cell value",
				zap.String("sheet", sheet),
				zap.String("cell", cell),
				zap.Error(err))
		}
	}
}
