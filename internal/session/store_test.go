package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "session.json"), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestStore_LoadMissingFileYieldsZeroState(t *testing.T) {
	store := newTestStore(t)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Token)
	assert.NotNil(t, state.PendingInvoices)
	assert.Empty(t, state.PendingInvoices)
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	inv := models.EmptyInvoice()
	inv.Invoice.InvoiceNumber = "INV-42"
	state := &State{Token: "tok", PendingInvoices: []models.Invoice{*inv}}
	require.NoError(t, store.Save(state))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", loaded.Token)
	require.Len(t, loaded.PendingInvoices, 1)
	assert.Equal(t, "INV-42", loaded.PendingInvoices[0].Invoice.InvoiceNumber)
}

func TestStore_ClearRemovesFile(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&State{Token: "tok"}))
	require.NoError(t, store.Clear())

	_, err := os.Stat(store.path)
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine
	require.NoError(t, store.Clear())
}

func TestNewStore_RejectsTraversal(t *testing.T) {
	_, err := NewStore("../outside/session.json", zap.NewNop())
	assert.Error(t, err)
}
