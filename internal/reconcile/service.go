package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
	"github.com/invoicedesk/invoicedesk/internal/repository"
	"github.com/invoicedesk/invoicedesk/pkg/database"
)

// ErrInvalidInvoice marks an invoice rejected before any write: one of the
// natural keys (invoice_number, supplier name, customer name) is missing.
var ErrInvalidInvoice = errors.New("invalid invoice")

// Service maps one finalized invoice record onto the normalized store:
// find-or-create supplier and customer, upsert the invoice header, then
// reconcile the line-item set against what is already stored.
//
// The whole sequence runs inside a single transaction, and saves for the
// same invoice_number are serialized through a keyed mutex, so a failed save
// rolls back cleanly and concurrent saves cannot create duplicate rows.
type Service struct {
	db        *database.DB
	invoices  *repository.InvoiceRepository
	suppliers *repository.PartyRepository
	customers *repository.PartyRepository
	items     *repository.ItemRepository
	lineItems *repository.LineItemRepository
	locks     *keyedMutex
	logger    *zap.Logger
}

// NewService creates a new reconciliation service
func NewService(
	db *database.DB,
	invoices *repository.InvoiceRepository,
	suppliers *repository.PartyRepository,
	customers *repository.PartyRepository,
	items *repository.ItemRepository,
	lineItems *repository.LineItemRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:        db,
		invoices:  invoices,
		suppliers: suppliers,
		customers: customers,
		items:     items,
		lineItems: lineItems,
		locks:     newKeyedMutex(),
		logger:    logger,
	}
}

// Persist saves one invoice and returns its stored row id. Re-running with
// identical input is a no-op on the item set: unchanged rows keep their ids.
func (s *Service) Persist(ctx context.Context, inv *models.Invoice) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if inv.Invoice.InvoiceNumber == "" {
		return 0, fmt.Errorf("%w: invoice_number is required", ErrInvalidInvoice)
	}
	if inv.Supplier.Name == "" {
		return 0, fmt.Errorf("%w: supplier name is required", ErrInvalidInvoice)
	}
	if inv.Customer.Name == "" {
		return 0, fmt.Errorf("%w: customer name is required", ErrInvalidInvoice)
	}

	unlock := s.locks.Lock(strings.ToLower(inv.Invoice.InvoiceNumber))
	defer unlock()

	var storedID int64
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		supplierID, err := s.suppliers.FindOrCreate(tx, &inv.Supplier)
		if err != nil {
			return fmt.Errorf("failed to resolve supplier: %w", err)
		}

		customerID, err := s.customers.FindOrCreate(tx, &inv.Customer)
		if err != nil {
			return fmt.Errorf("failed to resolve customer: %w", err)
		}

		storedID, err = s.invoices.Upsert(tx, &inv.Invoice, supplierID, customerID)
		if err != nil {
			return err
		}

		return s.reconcileItems(tx, storedID, inv.Items)
	})
	if err != nil {
		s.logger.Error("Failed to persist invoice",
			zap.String("invoice_number", inv.Invoice.InvoiceNumber),
			zap.Error(err))
		return 0, err
	}

	s.logger.Info("Invoice persisted",
		zap.String("invoice_number", inv.Invoice.InvoiceNumber),
		zap.Int64("stored_id", storedID),
		zap.Int("items", len(inv.Items)))

	return storedID, nil
}

// reconcileItems applies the minimal diff between the stored line-item set
// and the desired one, keyed by item_code: removed rows are deleted, changed
// rows updated in place, added rows inserted after find-or-create of their
// catalog item. Untouched rows keep their ids, so there is no window in
// which stale and fresh items coexist.
func (s *Service) reconcileItems(tx *sql.Tx, invoiceID int64, desired []models.LineItem) error {
	stored, err := s.lineItems.ListByInvoice(tx, invoiceID)
	if err != nil {
		return err
	}

	storedByCode := make(map[string]models.LineItem, len(stored))
	for _, li := range stored {
		storedByCode[strings.ToLower(li.ItemCode)] = li
	}

	seen := make(map[string]bool, len(desired))
	for i := range desired {
		line := &desired[i]
		code := strings.ToLower(line.ItemCode)
		if seen[code] {
			// Duplicate codes within one invoice collapse to the last entry
			s.logger.Warn("Duplicate item_code in invoice, keeping last",
				zap.Int64("invoice_id", invoiceID),
				zap.String("item_code", line.ItemCode))
		}
		seen[code] = true

		existing, ok := storedByCode[code]
		if !ok {
			itemID, err := s.items.FindOrCreate(tx, line)
			if err != nil {
				return fmt.Errorf("failed to resolve catalog item %q: %w", line.ItemCode, err)
			}
			if err := s.lineItems.Insert(tx, invoiceID, itemID, line); err != nil {
				return err
			}
			continue
		}

		if existing.Quantity != line.Quantity ||
			existing.UnitPrice != line.UnitPrice ||
			existing.TotalPrice != line.TotalPrice {
			line.ID = existing.ID
			if err := s.lineItems.Update(tx, line); err != nil {
				return err
			}
		} else {
			line.ID = existing.ID
		}
	}

	for code, li := range storedByCode {
		if !seen[code] {
			if err := s.lineItems.Delete(tx, li.ID); err != nil {
				return err
			}
		}
	}

	return nil
}
