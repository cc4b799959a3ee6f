package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
	"github.com/invoicedesk/invoicedesk/internal/repository"
)

// Service reads persisted invoices back for list and detail views.
type Service struct {
	invoices  *repository.InvoiceRepository
	suppliers *repository.PartyRepository
	customers *repository.PartyRepository
	lineItems *repository.LineItemRepository
	logger    *zap.Logger
}

// NewService creates a new retrieval service
func NewService(
	invoices *repository.InvoiceRepository,
	suppliers *repository.PartyRepository,
	customers *repository.PartyRepository,
	lineItems *repository.LineItemRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		invoices:  invoices,
		suppliers: suppliers,
		customers: customers,
		lineItems: lineItems,
		logger:    logger,
	}
}

// ListInvoices returns summary-level rows without line items.
func (s *Service) ListInvoices(ctx context.Context) ([]*models.InvoiceSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.invoices.List()
}

// GetInvoiceDetail returns the full invoice: header, resolved supplier and
// customer, and the complete line-item list. Unknown ids surface
// repository.ErrNotFound.
func (s *Service) GetInvoiceDetail(ctx context.Context, id int64) (*models.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header, supplierID, customerID, err := s.invoices.GetByID(id)
	if err != nil {
		return nil, err
	}

	supplier, err := s.suppliers.GetByID(supplierID)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.GetByID(customerID)
	if err != nil {
		return nil, err
	}

	items, err := s.lineItems.ListByInvoice(nil, id)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Invoice detail loaded",
		zap.Int64("id", id),
		zap.String("invoice_number", header.InvoiceNumber),
		zap.Int("items", len(items)))

	return &models.Invoice{
		ID:       id,
		Invoice:  *header,
		Supplier: *supplier,
		Customer: *customer,
		Items:    items,
	}, nil
}
