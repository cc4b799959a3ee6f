package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

// State is the explicit session context: the auth token and the
// extracted-but-not-yet-saved invoice batch carried between the ingestion
// step and the review step. It replaces ambient client-local storage with a
// defined load-on-start / clear-on-logout lifecycle.
type State struct {
	Token           string           `json:"token,omitempty"`
	PendingInvoices []models.Invoice `json:"pending_invoices"`
}

// Store persists session state as JSON under a fixed path.
type Store struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStore creates a new session store
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid session path: %w", err)
	}
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("session path must not traverse directories: %s", path)
	}
	return &Store{path: abs, logger: logger}, nil
}

// Load reads the persisted session state. A missing file yields zero state,
// not an error, so a fresh install starts clean.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &State{PendingInvoices: []models.Invoice{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	if state.PendingInvoices == nil {
		state.PendingInvoices = []models.Invoice{}
	}
	return &state, nil
}

// Save persists the session state, creating parent directories if needed.
func (s *Store) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		s.logger.Error("Failed to write session state", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("failed to write session state: %w", err)
	}

	s.logger.Debug("Session state saved",
		zap.String("path", s.path),
		zap.Int("pending_invoices", len(state.PendingInvoices)))
	return nil
}

// Clear removes the persisted state (logout).
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	s.logger.Info("Session state cleared", zap.String("path", s.path))
	return nil
}
