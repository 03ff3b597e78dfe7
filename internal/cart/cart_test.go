package cart

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
	require.NoError(t, db.AutoMigrate(&Cart{}))

	return NewService(db)
}

func TestAddLineAndGet(t *testing.T) {
	svc := newTestService(t)

	lines, err := svc.AddLine("USR_1", types.CartLine{
		ProductID: "PRD_tee", Name: "Classic Tee", UnitPriceMinorUnits: 2500, Quantity: 2,
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	got, err := svc.Get("USR_1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Quantity)
	assert.Equal(t, int64(5000), got.Total())
}

func TestAddLineMergesQuantities(t *testing.T) {
	svc := newTestService(t)

	line := types.CartLine{ProductID: "PRD_tee", UnitPriceMinorUnits: 2500, Quantity: 1}
	_, err := svc.AddLine("USR_1", line)
	require.NoError(t, err)
	lines, err := svc.AddLine("USR_1", line)
	require.NoError(t, err)

	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].Quantity)
}

func TestAddLineValidation(t *testing.T) {
	svc := newTestService(t)

	cases := []types.CartLine{
		{ProductID: "", Quantity: 1},
		{ProductID: "PRD_tee", Quantity: 0},
		{ProductID: "PRD_tee", Quantity: -1},
		{ProductID: "PRD_tee", Quantity: 1, UnitPriceMinorUnits: -5},
	}
	for _, line := range cases {
		_, err := svc.AddLine("USR_1", line)
		assert.ErrorIs(t, err, ErrInvalidLine)
	}
}

func TestRemoveLine(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddLine("USR_1", types.CartLine{ProductID: "PRD_tee", UnitPriceMinorUnits: 2500, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddLine("USR_1", types.CartLine{ProductID: "PRD_mug", UnitPriceMinorUnits: 1500, Quantity: 1})
	require.NoError(t, err)

	lines, err := svc.RemoveLine("USR_1", "PRD_tee")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "PRD_mug", lines[0].ProductID)

	// Removing something absent is a no-op
	lines, err = svc.RemoveLine("USR_1", "PRD_ghost")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestClear(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddLine("USR_1", types.CartLine{ProductID: "PRD_tee", UnitPriceMinorUnits: 2500, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, svc.Clear("USR_1"))

	got, err := svc.Get("USR_1")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Clearing an empty cart is fine
	require.NoError(t, svc.Clear("USR_1"))
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddLine("USR_1", types.CartLine{ProductID: "PRD_tee", UnitPriceMinorUnits: 2500, Quantity: 1})
	require.NoError(t, err)

	got, err := svc.Get("USR_2")
	require.NoError(t, err)
	assert.Empty(t, got)
}
