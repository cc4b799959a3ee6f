package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/models"
	"github.com/invoicedesk/invoicedesk/internal/repository"
	"github.com/invoicedesk/invoicedesk/internal/testutil"
)

func TestItemRepository_FindOrCreateUsesLineItemDefaults(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewItemRepository(db.DB, zap.NewNop())

	id, err := repo.FindOrCreate(nil, &models.LineItem{
		ItemCode:    "X1",
		ItemName:    "Widget",
		Description: "A widget",
		UnitPrice:   9.99,
	})
	require.NoError(t, err)

	item, err := repo.GetByCode("X1")
	require.NoError(t, err)
	assert.Equal(t, id, item.ID)
	assert.Equal(t, "Widget", item.ItemName)
	assert.Equal(t, 9.99, item.CurrentSellingPrice)
}

func TestItemRepository_CodeIsCaseInsensitiveAndNeverDuplicated(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewItemRepository(db.DB, zap.NewNop())

	first, err := repo.FindOrCreate(nil, &models.LineItem{ItemCode: "ABC-1", ItemName: "Thing", UnitPrice: 5})
	require.NoError(t, err)

	// Re-resolving with a different case and different prices keeps the catalog row
	second, err := repo.FindOrCreate(nil, &models.LineItem{ItemCode: "abc-1", ItemName: "Other", UnitPrice: 50})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	item, err := repo.GetByCode("ABC-1")
	require.NoError(t, err)
	assert.Equal(t, "Thing", item.ItemName, "catalog defaults come from the first sighting")
	assert.Equal(t, 5.0, item.CurrentSellingPrice)
}

func TestItemRepository_GetByCodeNotFound(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := repository.NewItemRepository(db.DB, zap.NewNop())

	_, err := repo.GetByCode("NOPE")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
