package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

// InvoiceRepository handles invoice header rows.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes the invoice header, linking the resolved supplier/customer
// ids. invoice_number is the de-duplication key: an existing row (matched
// case-insensitively through the NOCASE unique index) is updated in place,
// otherwise a new row is created. Returns the stored row id either way.
func (r *InvoiceRepository) Upsert(tx *sql.Tx, header *models.InvoiceHeader, supplierID, customerID int64) (int64, error) {
	q := on(r.db, tx)

	query := `
		INSERT INTO invoices (
			invoice_number, invoice_date, due_date, type,
			total_amount, vat_amount, status, notes,
			supplier_id, customer_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(invoice_number) DO UPDATE SET
			invoice_date = excluded.invoice_date,
			due_date = excluded.due_date,
			type = excluded.type,
			total_amount = excluded.total_amount,
			vat_amount = excluded.vat_amount,
			status = excluded.status,
			notes = excluded.notes,
			supplier_id = excluded.supplier_id,
			customer_id = excluded.customer_id,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := q.Exec(query,
		header.InvoiceNumber,
		header.Date,
		header.DueDate,
		header.Type,
		header.TotalAmount,
		header.VATAmount,
		header.Status,
		header.Notes,
		supplierID,
		customerID,
	); err != nil {
		r.logger.Error("Failed to upsert invoice",
			zap.String("invoice_number", header.InvoiceNumber),
			zap.Error(err))
		return 0, fmt.Errorf("failed to upsert invoice: %w", err)
	}

	var id int64
	if err := q.QueryRow(
		"SELECT id FROM invoices WHERE invoice_number = ? COLLATE NOCASE",
		header.InvoiceNumber,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve invoice id: %w", err)
	}

	return id, nil
}

// GetByNumber finds an invoice row by case-insensitive invoice_number match.
func (r *InvoiceRepository) GetByNumber(number string) (int64, error) {
	var id int64
	err := r.db.QueryRow(
		"SELECT id FROM invoices WHERE invoice_number = ? COLLATE NOCASE",
		number,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find invoice by number: %w", err)
	}
	return id, nil
}

// GetByID retrieves one invoice header with its party ids.
func (r *InvoiceRepository) GetByID(id int64) (*models.InvoiceHeader, int64, int64, error) {
	query := `
		SELECT invoice_number, invoice_date, due_date, type,
			total_amount, vat_amount, status, notes,
			supplier_id, customer_id
		FROM invoices WHERE id = ?
	`

	var header models.InvoiceHeader
	var supplierID, customerID int64
	err := r.db.QueryRow(query, id).Scan(
		&header.InvoiceNumber,
		&header.Date,
		&header.DueDate,
		&header.Type,
		&header.TotalAmount,
		&header.VATAmount,
		&header.Status,
		&header.Notes,
		&supplierID,
		&customerID,
	)
	if err == sql.ErrNoRows {
		return nil, 0, 0, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		return nil, 0, 0, fmt.Errorf("failed to get invoice: %w", err)
	}

	return &header, supplierID, customerID, nil
}

// List returns summary rows with resolved party names, newest first.
// Line items are not loaded here.
func (r *InvoiceRepository) List() ([]*models.InvoiceSummary, error) {
	query := `
		SELECT i.id, i.invoice_number, i.invoice_date, i.type,
			i.total_amount, i.vat_amount, i.status,
			s.name, c.name
		FROM invoices i
		JOIN suppliers s ON s.id = i.supplier_id
		JOIN customers c ON c.id = i.customer_id
		ORDER BY i.id DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var summaries []*models.InvoiceSummary
	for rows.Next() {
		var s models.InvoiceSummary
		if err := rows.Scan(
			&s.ID,
			&s.InvoiceNumber,
			&s.Date,
			&s.Type,
			&s.TotalAmount,
			&s.VATAmount,
			&s.Status,
			&s.SupplierName,
			&s.CustomerName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice summary: %w", err)
		}
		summaries = append(summaries, &s)
	}

	return summaries, rows.Err()
}

// Count returns the number of invoice rows.
func (r *InvoiceRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM invoices").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return n, nil
}
