package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

// ItemRepository handles the shared item catalog, keyed by item_code.
type ItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *sql.DB, logger *zap.Logger) *ItemRepository {
	return &ItemRepository{
		db:     db,
		logger: logger,
	}
}

// FindOrCreate resolves a catalog item by case-insensitive item_code match,
// creating it with the line item's name/description/unit price as catalog
// defaults if absent. A given item_code always maps to exactly one row.
func (r *ItemRepository) FindOrCreate(tx *sql.Tx, line *models.LineItem) (int64, error) {
	q := on(r.db, tx)

	insert := `
		INSERT INTO items (item_code, item_name, description, current_selling_price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(item_code) DO NOTHING
	`
	if _, err := q.Exec(insert, line.ItemCode, line.ItemName, line.Description, line.UnitPrice); err != nil {
		r.logger.Error("Failed to insert catalog item", zap.String("item_code", line.ItemCode), zap.Error(err))
		return 0, fmt.Errorf("failed to insert catalog item: %w", err)
	}

	var id int64
	if err := q.QueryRow("SELECT id FROM items WHERE item_code = ? COLLATE NOCASE", line.ItemCode).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve catalog item id: %w", err)
	}

	return id, nil
}

// GetByCode retrieves a catalog item by its code.
func (r *ItemRepository) GetByCode(code string) (*models.CatalogItem, error) {
	query := `
		SELECT id, item_code, item_name, description, current_selling_price, created_at
		FROM items WHERE item_code = ? COLLATE NOCASE
	`

	var item models.CatalogItem
	err := r.db.QueryRow(query, code).Scan(
		&item.ID,
		&item.ItemCode,
		&item.ItemName,
		&item.Description,
		&item.CurrentSellingPrice,
		&item.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog item: %w", err)
	}
	return &item, nil
}

// Count returns the number of catalog rows.
func (r *ItemRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count catalog items: %w", err)
	}
	return n, nil
}
