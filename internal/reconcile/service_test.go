package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
	"github.com/invoicedesk/invoicedesk/internal/reconcile"
	"github.com/invoicedesk/invoicedesk/internal/repository"
	"github.com/invoicedesk/invoicedesk/internal/testutil"
	"github.com/invoicedesk/invoicedesk/pkg/database"
)

type fixture struct {
	db        *database.DB
	service   *reconcile.Service
	invoices  *repository.InvoiceRepository
	suppliers *repository.PartyRepository
	customers *repository.PartyRepository
	items     *repository.ItemRepository
	lineItems *repository.LineItemRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	logger := zap.NewNop()

	invoices := repository.NewInvoiceRepository(db.DB, logger)
	suppliers, err := repository.NewPartyRepository(db.DB, repository.TableSuppliers, logger)
	require.NoError(t, err)
	customers, err := repository.NewPartyRepository(db.DB, repository.TableCustomers, logger)
	require.NoError(t, err)
	items := repository.NewItemRepository(db.DB, logger)
	lineItems := repository.NewLineItemRepository(db.DB, logger)

	return &fixture{
		db:        db,
		service:   reconcile.NewService(db, invoices, suppliers, customers, items, lineItems, logger),
		invoices:  invoices,
		suppliers: suppliers,
		customers: customers,
		items:     items,
		lineItems: lineItems,
	}
}

func sampleInvoice() *models.Invoice {
	return &models.Invoice{
		Invoice: models.InvoiceHeader{
			InvoiceNumber: "INV-001",
			Date:          "2024-05-01",
			Type:          models.TypeIncoming,
			TotalAmount:   120,
			VATAmount:     20,
			Status:        models.StatusUnpaid,
		},
		Supplier: models.Party{Name: "Acme"},
		Customer: models.Party{Name: "Beta"},
		Items: []models.LineItem{
			{ItemName: "Widget", ItemCode: "X1", Quantity: 2, UnitPrice: 10, TotalPrice: 20},
			{ItemName: "Gadget", ItemCode: "X2", Quantity: 1, UnitPrice: 100, TotalPrice: 100},
		},
	}
}

func TestPersist_CreatesAllRows(t *testing.T) {
	f := newFixture(t)

	id, err := f.service.Persist(context.Background(), sampleInvoice())
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	invCount, err := f.invoices.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, invCount)

	itemCount, err := f.items.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, itemCount)

	lineCount, err := f.lineItems.CountByInvoice(id)
	require.NoError(t, err)
	assert.Equal(t, 2, lineCount)
}

func TestPersist_ExistingNumberUpdatesInsteadOfDuplicating(t *testing.T) {
	f := newFixture(t)

	id1, err := f.service.Persist(context.Background(), sampleInvoice())
	require.NoError(t, err)

	updated := sampleInvoice()
	updated.Invoice.Status = models.StatusPaid
	updated.Invoice.TotalAmount = 150
	id2, err := f.service.Persist(context.Background(), updated)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	count, err := f.invoices.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "row count must not increase for an existing invoice_number")

	header, _, _, err := f.invoices.GetByID(id1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, header.Status)
	assert.Equal(t, 150.0, header.TotalAmount)
}

func TestPersist_SequentialSavesAreIdempotentOnItems(t *testing.T) {
	f := newFixture(t)

	id, err := f.service.Persist(context.Background(), sampleInvoice())
	require.NoError(t, err)

	first, err := f.lineItems.ListByInvoice(nil, id)
	require.NoError(t, err)

	_, err = f.service.Persist(context.Background(), sampleInvoice())
	require.NoError(t, err)

	second, err := f.lineItems.ListByInvoice(nil, id)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "unchanged rows keep their ids")
	}
}

func TestPersist_ItemDiffAppliesMinimalChanges(t *testing.T) {
	f := newFixture(t)

	id, err := f.service.Persist(context.Background(), sampleInvoice())
	require.NoError(t, err)

	before, err := f.lineItems.ListByInvoice(nil, id)
	require.NoError(t, err)
	require.Len(t, before, 2)

	// X1 changes quantity, X2 is dropped, X3 is new
	next := sampleInvoice()
	next.Items = []models.LineItem{
		{ItemName: "Widget", ItemCode: "X1", Quantity: 5, UnitPrice: 10, TotalPrice: 50},
		{ItemName: "Sprocket", ItemCode: "X3", Quantity: 3, UnitPrice: 7, TotalPrice: 21},
	}
	_, err = f.service.Persist(context.Background(), next)
	require.NoError(t, err)

	after, err := f.lineItems.ListByInvoice(nil, id)
	require.NoError(t, err)
	require.Len(t, after, 2)

	byCode := map[string]models.LineItem{}
	for _, li := range after {
		byCode[li.ItemCode] = li
	}

	assert.Equal(t, before[0].ID, byCode["X1"].ID, "changed row keeps its id")
	assert.Equal(t, 5.0, byCode["X1"].Quantity)
	assert.NotContains(t, byCode, "X2")
	assert.Equal(t, 3.0, byCode["X3"].Quantity)

	// X2 stays in the catalog even though no line item references it
	_, err = f.items.GetByCode("X2")
	assert.NoError(t, err)
}

func TestPersist_SupplierResolutionIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Persist(context.Background(), sampleInvoice())
	require.NoError(t, err)

	other := sampleInvoice()
	other.Invoice.InvoiceNumber = "INV-002"
	other.Supplier.Name = "ACME"
	other.Customer.Name = "beta"
	_, err = f.service.Persist(context.Background(), other)
	require.NoError(t, err)

	supplierList, err := f.suppliers.List()
	require.NoError(t, err)
	assert.Len(t, supplierList, 1, "ACME and Acme resolve to the same supplier row")

	customerList, err := f.customers.List()
	require.NoError(t, err)
	assert.Len(t, customerList, 1)
}

func TestPersist_SharedCatalogAcrossInvoices(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Persist(context.Background(), sampleInvoice())
	require.NoError(t, err)

	other := sampleInvoice()
	other.Invoice.InvoiceNumber = "INV-002"
	other.Items = []models.LineItem{
		{ItemName: "Widget", ItemCode: "x1", Quantity: 9, UnitPrice: 10, TotalPrice: 90},
	}
	_, err = f.service.Persist(context.Background(), other)
	require.NoError(t, err)

	count, err := f.items.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count, "item_code x1 reuses the X1 catalog row")
}

func TestPersist_MissingKeysRejected(t *testing.T) {
	f := newFixture(t)

	inv := sampleInvoice()
	inv.Invoice.InvoiceNumber = ""
	_, err := f.service.Persist(context.Background(), inv)
	assert.Error(t, err)

	inv = sampleInvoice()
	inv.Supplier.Name = ""
	_, err = f.service.Persist(context.Background(), inv)
	assert.Error(t, err)

	inv = sampleInvoice()
	inv.Customer.Name = ""
	_, err = f.service.Persist(context.Background(), inv)
	assert.Error(t, err)

	count, err := f.invoices.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count, "rejected saves write nothing")
}

func TestPersist_ConcurrentSavesForSameNumberDoNotDuplicate(t *testing.T) {
	f := newFixture(t)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := f.service.Persist(context.Background(), sampleInvoice())
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	count, err := f.invoices.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	id, err := f.invoices.GetByNumber("INV-001")
	require.NoError(t, err)
	lineCount, err := f.lineItems.CountByInvoice(id)
	require.NoError(t, err)
	assert.Equal(t, 2, lineCount)
}
