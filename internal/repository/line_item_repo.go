package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

// LineItemRepository handles invoice_items rows. Line items have no life of
// their own: every operation is scoped to one invoice row id.
type LineItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLineItemRepository creates a new line item repository
func NewLineItemRepository(db *sql.DB, logger *zap.Logger) *LineItemRepository {
	return &LineItemRepository{
		db:     db,
		logger: logger,
	}
}

// ListByInvoice returns the stored line items of an invoice, joined with
// their catalog item fields.
func (r *LineItemRepository) ListByInvoice(tx *sql.Tx, invoiceID int64) ([]models.LineItem, error) {
	q := on(r.db, tx)

	query := `
		SELECT li.id, it.item_name, it.item_code, it.description,
			li.quantity, li.unit_price, li.total_price
		FROM invoice_items li
		JOIN items it ON it.id = li.item_id
		WHERE li.invoice_id = ?
		ORDER BY li.id
	`

	rows, err := q.Query(query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list line items", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	items := []models.LineItem{}
	for rows.Next() {
		var li models.LineItem
		if err := rows.Scan(
			&li.ID,
			&li.ItemName,
			&li.ItemCode,
			&li.Description,
			&li.Quantity,
			&li.UnitPrice,
			&li.TotalPrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, li)
	}

	return items, rows.Err()
}

// Insert creates a new line item row linking invoice and catalog item.
func (r *LineItemRepository) Insert(tx *sql.Tx, invoiceID, itemID int64, line *models.LineItem) error {
	q := on(r.db, tx)

	query := `
		INSERT INTO invoice_items (invoice_id, item_id, quantity, unit_price, total_price)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := q.Exec(query, invoiceID, itemID, line.Quantity, line.UnitPrice, line.TotalPrice)
	if err != nil {
		r.logger.Error("Failed to insert line item",
			zap.Int64("invoice_id", invoiceID),
			zap.String("item_code", line.ItemCode),
			zap.Error(err))
		return fmt.Errorf("failed to insert line item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get line item id: %w", err)
	}
	line.ID = id
	return nil
}

// Update rewrites the quantities/prices of an existing row, preserving its id.
func (r *LineItemRepository) Update(tx *sql.Tx, line *models.LineItem) error {
	q := on(r.db, tx)

	query := `
		UPDATE invoice_items
		SET quantity = ?, unit_price = ?, total_price = ?
		WHERE id = ?
	`
	if _, err := q.Exec(query, line.Quantity, line.UnitPrice, line.TotalPrice, line.ID); err != nil {
		return fmt.Errorf("failed to update line item: %w", err)
	}
	return nil
}

// Delete removes one line item row.
func (r *LineItemRepository) Delete(tx *sql.Tx, id int64) error {
	q := on(r.db, tx)

	if _, err := q.Exec("DELETE FROM invoice_items WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete line item: %w", err)
	}
	return nil
}

// CountByInvoice returns the number of stored line items for an invoice.
func (r *LineItemRepository) CountByInvoice(invoiceID int64) (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM invoice_items WHERE invoice_id = ?", invoiceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count line items: %w", err)
	}
	return n, nil
}
