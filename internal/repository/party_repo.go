package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

// Party tables
const (
	TableSuppliers = "suppliers"
	TableCustomers = "customers"
)

// PartyRepository handles supplier or customer rows; the two tables share a
// schema, so one repository serves both, bound to its table at construction.
type PartyRepository struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// NewPartyRepository creates a repository bound to one of the party tables.
func NewPartyRepository(db *sql.DB, table string, logger *zap.Logger) (*PartyRepository, error) {
	if table != TableSuppliers && table != TableCustomers {
		return nil, fmt.Errorf("unknown party table: %s", table)
	}
	return &PartyRepository{
		db:     db,
		table:  table,
		logger: logger,
	}, nil
}

// FindOrCreate resolves a party row by case-insensitive exact name match,
// creating it if absent. The conditional insert is atomic: the NOCASE unique
// index on name makes concurrent find-or-creates converge on one row.
// Existing rows are never modified; party lifetime is independent of any
// invoice.
func (r *PartyRepository) FindOrCreate(tx *sql.Tx, party *models.Party) (int64, error) {
	q := on(r.db, tx)

	insert := fmt.Sprintf(`
		INSERT INTO %s (name, contact_person, email, phone, address, tax_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, r.table)

	if _, err := q.Exec(insert,
		party.Name,
		party.ContactPerson,
		party.Email,
		party.Phone,
		party.Address,
		party.TaxID,
	); err != nil {
		r.logger.Error("Failed to insert party", zap.String("table", r.table), zap.Error(err))
		return 0, fmt.Errorf("failed to insert into %s: %w", r.table, err)
	}

	var id int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE name = ? COLLATE NOCASE", r.table)
	if err := q.QueryRow(query, party.Name).Scan(&id); err != nil {
		r.logger.Error("Failed to resolve party id", zap.String("table", r.table), zap.Error(err))
		return 0, fmt.Errorf("failed to resolve %s id: %w", r.table, err)
	}

	return id, nil
}

// GetByID retrieves a party row.
func (r *PartyRepository) GetByID(id int64) (*models.Party, error) {
	query := fmt.Sprintf(`
		SELECT id, name, contact_person, email, phone, address, tax_id
		FROM %s WHERE id = ?
	`, r.table)

	var party models.Party
	err := r.db.QueryRow(query, id).Scan(
		&party.ID,
		&party.Name,
		&party.ContactPerson,
		&party.Email,
		&party.Phone,
		&party.Address,
		&party.TaxID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s row: %w", r.table, err)
	}
	return &party, nil
}

// List returns all party rows ordered by name.
func (r *PartyRepository) List() ([]*models.Party, error) {
	query := fmt.Sprintf(`
		SELECT id, name, contact_person, email, phone, address, tax_id
		FROM %s ORDER BY name
	`, r.table)

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list parties", zap.String("table", r.table), zap.Error(err))
		return nil, fmt.Errorf("failed to list %s: %w", r.table, err)
	}
	defer rows.Close()

	var parties []*models.Party
	for rows.Next() {
		var party models.Party
		if err := rows.Scan(
			&party.ID,
			&party.Name,
			&party.ContactPerson,
			&party.Email,
			&party.Phone,
			&party.Address,
			&party.TaxID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.table, err)
		}
		parties = append(parties, &party)
	}

	return parties, rows.Err()
}
