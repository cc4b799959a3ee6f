package review

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

// ErrSessionClosed is returned by operations on a session whose last record
// has been committed.
var ErrSessionClosed = errors.New("review session is closed")

// ErrEmptySession is returned when a session is created over zero records.
var ErrEmptySession = errors.New("review session has no invoices")

// Persister saves one finalized invoice and returns its stored row id.
type Persister interface {
	Persist(ctx context.Context, invoice *models.Invoice) (int64, error)
}

// Session is the single-user review/edit pass over one extracted batch:
// an ordered sequence of invoice records plus a 0-indexed cursor. Edits are
// pure in-memory mutations; a record becomes durable only on Commit.
type Session struct {
	invoices  []models.Invoice
	index     int
	closed    bool
	persister Persister
	logger    *zap.Logger
}

// NewSession creates a review session over the given records.
func NewSession(invoices []models.Invoice, persister Persister, logger *zap.Logger) (*Session, error) {
	if len(invoices) == 0 {
		return nil, ErrEmptySession
	}
	return &Session{
		invoices:  invoices,
		persister: persister,
		logger:    logger,
	}, nil
}

// Len returns the number of records in the session.
func (s *Session) Len() int { return len(s.invoices) }

// Index returns the current cursor position.
func (s *Session) Index() int { return s.index }

// Closed reports whether the session has finished.
func (s *Session) Closed() bool { return s.closed }

// Current returns the record under the cursor.
func (s *Session) Current() (*models.Invoice, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	return &s.invoices[s.index], nil
}

// Seek moves the cursor to index i, clamped to [0, Len()-1].
func (s *Session) Seek(i int) error {
	if s.closed {
		return ErrSessionClosed
	}
	if i < 0 {
		i = 0
	}
	if i > len(s.invoices)-1 {
		i = len(s.invoices) - 1
	}
	s.index = i
	return nil
}

// Edit applies an in-memory mutation to the record under the cursor.
// No validation beyond shape; concurrent edits are last-write-wins.
func (s *Session) Edit(apply func(*models.Invoice)) error {
	if s.closed {
		return ErrSessionClosed
	}
	apply(&s.invoices[s.index])
	return nil
}

// Commit persists exactly the current record. On success it auto-advances
// the cursor, closing the session if the last record was committed. On
// failure the cursor is unchanged and the session stays open so the save can
// be retried.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}

	inv := &s.invoices[s.index]
	id, err := s.persister.Persist(ctx, inv)
	if err != nil {
		s.logger.Error("Failed to persist invoice",
			zap.Int("index", s.index),
			zap.String("invoice_number", inv.Invoice.InvoiceNumber),
			zap.Error(err))
		return err
	}
	inv.ID = id

	s.logger.Info("Invoice committed",
		zap.Int("index", s.index),
		zap.String("invoice_number", inv.Invoice.InvoiceNumber),
		zap.Int64("stored_id", id))

	if s.index < len(s.invoices)-1 {
		s.index++
	} else {
		s.closed = true
		s.logger.Info("Review session closed", zap.Int("invoices", len(s.invoices)))
	}
	return nil
}
