package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ksred/storefront-api/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Product{}))

	seeded := []Product{
		{ProductID: "PRD_tee", Name: "Classic Tee", UnitPriceMinorUnits: 2500, Currency: "cad", Active: true},
		{ProductID: "PRD_mug", Name: "Enamel Mug", UnitPriceMinorUnits: 1500, Currency: "cad", Active: true},
		{ProductID: "PRD_retired", Name: "Retired Print", UnitPriceMinorUnits: 4000, Currency: "cad", Active: false},
	}
	require.NoError(t, db.Create(&seeded).Error)

	return NewService(db)
}

func TestListProductsOnlyActive(t *testing.T) {
	svc := newTestService(t)

	products, err := svc.ListProducts()
	require.NoError(t, err)
	require.Len(t, products, 2)
	for _, p := range products {
		assert.True(t, p.Active)
	}
}

func TestGetProduct(t *testing.T) {
	svc := newTestService(t)

	product, err := svc.GetProduct("PRD_tee")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, int64(2500), product.UnitPriceMinorUnits)

	missing, err := svc.GetProduct("PRD_ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPriceLinesOverridesKnownProducts(t *testing.T) {
	svc := newTestService(t)

	priced, err := svc.PriceLines([]types.CartLine{
		{ProductID: "PRD_tee", Name: "Hacked Tee", UnitPriceMinorUnits: 1, Quantity: 2},
		{ProductID: "PRD_unlisted", Name: "Custom Item", UnitPriceMinorUnits: 999, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, priced, 2)

	// Known product: catalog values win
	assert.Equal(t, "Classic Tee", priced[0].Name)
	assert.Equal(t, int64(2500), priced[0].UnitPriceMinorUnits)
	assert.Equal(t, int64(2), priced[0].Quantity)

	// Unknown product keeps the submitted values
	assert.Equal(t, "Custom Item", priced[1].Name)
	assert.Equal(t, int64(999), priced[1].UnitPriceMinorUnits)
}
