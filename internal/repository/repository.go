package repository

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a lookup by id or natural key matches nothing.
var ErrNotFound = errors.New("record not found")

// execer abstracts *sql.DB and *sql.Tx so repository methods compose inside
// the reconciliation transaction.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// on returns tx when given, else the repository's own handle.
func on(db *sql.DB, tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return db
}
