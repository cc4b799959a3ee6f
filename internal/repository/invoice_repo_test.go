package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
	"github.com/invoicedesk/invoicedesk/internal/repository"
	"github.com/invoicedesk/invoicedesk/internal/testutil"
	"github.com/invoicedesk/invoicedesk/pkg/database"
)

func seedParties(t *testing.T, db *database.DB) (int64, int64) {
	t.Helper()
	suppliers, err := repository.NewPartyRepository(db.DB, repository.TableSuppliers, zap.NewNop())
	require.NoError(t, err)
	customers, err := repository.NewPartyRepository(db.DB, repository.TableCustomers, zap.NewNop())
	require.NoError(t, err)

	sid, err := suppliers.FindOrCreate(nil, &models.Party{Name: "Acme"})
	require.NoError(t, err)
	cid, err := customers.FindOrCreate(nil, &models.Party{Name: "Beta"})
	require.NoError(t, err)
	return sid, cid
}

func TestInvoiceRepository_UpsertDeduplicatesByNumber(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewInvoiceRepository(db.DB, zap.NewNop())
	sid, cid := seedParties(t, db)

	header := &models.InvoiceHeader{
		InvoiceNumber: "INV-100",
		Date:          "2024-04-01",
		Type:          models.TypeIncoming,
		TotalAmount:   100,
		VATAmount:     5,
		Status:        models.StatusUnpaid,
	}

	id1, err := repo.Upsert(nil, header, sid, cid)
	require.NoError(t, err)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Same number in a different case updates the existing row
	header.InvoiceNumber = "inv-100"
	header.Status = models.StatusPaid
	id2, err := repo.Upsert(nil, header, sid, cid)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	count, err = repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "no duplicate row for an existing invoice_number")

	stored, _, _, err := repo.GetByID(id1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, stored.Status)
}

func TestInvoiceRepository_NewNumberAddsExactlyOneRow(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewInvoiceRepository(db.DB, zap.NewNop())
	sid, cid := seedParties(t, db)

	_, err := repo.Upsert(nil, &models.InvoiceHeader{InvoiceNumber: "INV-1"}, sid, cid)
	require.NoError(t, err)
	before, err := repo.Count()
	require.NoError(t, err)

	_, err = repo.Upsert(nil, &models.InvoiceHeader{InvoiceNumber: "INV-2"}, sid, cid)
	require.NoError(t, err)
	after, err := repo.Count()
	require.NoError(t, err)

	assert.Equal(t, before+1, after)
}

func TestInvoiceRepository_GetByNumberCaseInsensitive(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewInvoiceRepository(db.DB, zap.NewNop())
	sid, cid := seedParties(t, db)

	id, err := repo.Upsert(nil, &models.InvoiceHeader{InvoiceNumber: "INV-ABC"}, sid, cid)
	require.NoError(t, err)

	found, err := repo.GetByNumber("inv-abc")
	require.NoError(t, err)
	assert.Equal(t, id, found)

	_, err = repo.GetByNumber("INV-MISSING")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInvoiceRepository_ListResolvesPartyNames(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewInvoiceRepository(db.DB, zap.NewNop())
	sid, cid := seedParties(t, db)

	_, err := repo.Upsert(nil, &models.InvoiceHeader{
		InvoiceNumber: "INV-L1",
		TotalAmount:   42,
		Status:        models.StatusUnpaid,
	}, sid, cid)
	require.NoError(t, err)

	summaries, err := repo.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Acme", summaries[0].SupplierName)
	assert.Equal(t, "Beta", summaries[0].CustomerName)
	assert.Equal(t, 42.0, summaries[0].TotalAmount)
}
