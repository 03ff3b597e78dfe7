package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ksred/storefront-api/internal/catalog"
	"github.com/ksred/storefront-api/internal/gateway"
	"github.com/ksred/storefront-api/internal/orders"
	"github.com/ksred/storefront-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&catalog.Product{},
		&orders.CheckoutAttempt{},
		&orders.Order{},
		&orders.WebhookEvent{},
	))
	return db
}

// stubGateway captures the last session request and answers with a canned
// session. Set status to force failures.
type stubGateway struct {
	server  *httptest.Server
	status  int
	lastReq gateway.SessionRequest
	calls   int
}

func newStubGateway(t *testing.T) *stubGateway {
	t.Helper()

	sg := &stubGateway{status: http.StatusOK}
	sg.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sg.calls++
		if err := json.NewDecoder(r.Body).Decode(&sg.lastReq); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if sg.status != http.StatusOK {
			w.WriteHeader(sg.status)
			return
		}
		json.NewEncoder(w).Encode(gateway.SessionResponse{
			SessionID:   "SES_test",
			RedirectURL: "https://pay.example.com/SES_test",
		})
	}))
	t.Cleanup(sg.server.Close)
	return sg
}

func newTestService(t *testing.T, db *gorm.DB, sg *stubGateway) (*Service, *orders.Service) {
	t.Helper()

	seeded := []catalog.Product{
		{ProductID: "PRD_tee", Name: "Classic Tee", UnitPriceMinorUnits: 20000, Currency: "cad", Active: true},
		{ProductID: "PRD_mug", Name: "Enamel Mug", UnitPriceMinorUnits: 10000, Currency: "cad", Active: true},
	}
	require.NoError(t, db.Create(&seeded).Error)

	ledger := orders.NewService(db, nil)
	svc := NewService(
		ledger,
		catalog.NewService(db),
		nil,
		gateway.NewClient(sg.server.URL, "sk_test"),
		"http://localhost:8080/api/v1/checkout/success",
		"http://localhost:8080/api/v1/checkout/cancel",
	)
	return svc, ledger
}

func TestInitiateComputesIntegerTotal(t *testing.T) {
	db := newTestDB(t)
	sg := newStubGateway(t)
	svc, ledger := newTestService(t, db, sg)

	lines := []types.CartLine{
		{ProductID: "PRD_tee", Quantity: 2},
		{ProductID: "PRD_mug", Quantity: 1},
	}

	result, err := svc.Initiate(context.Background(), "USR_1", lines)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), result.TotalMinorUnits)
	assert.Equal(t, "https://pay.example.com/SES_test", result.RedirectURL)
	assert.NotEmpty(t, result.AttemptID)

	// The attempt record carries the authoritative total and priced lines
	attempt, err := ledger.GetAttempt(result.AttemptID)
	require.NoError(t, err)
	require.NotNil(t, attempt)
	assert.Equal(t, int64(50000), attempt.TotalMinorUnits)
	assert.Equal(t, orders.StatusPending, attempt.Status)
	assert.Equal(t, "SES_test", attempt.GatewaySessionID)
	assert.Equal(t, attempt.TotalMinorUnits, attempt.Lines.Total())
}

func TestInitiateOverridesClientPrices(t *testing.T) {
	db := newTestDB(t)
	sg := newStubGateway(t)
	svc, _ := newTestService(t, db, sg)

	// Client claims the tee costs one cent
	lines := []types.CartLine{
		{ProductID: "PRD_tee", Name: "Cheap Tee", UnitPriceMinorUnits: 1, Quantity: 1},
	}

	result, err := svc.Initiate(context.Background(), "USR_1", lines)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), result.TotalMinorUnits)

	// The gateway saw catalog values, not the client's
	require.Len(t, sg.lastReq.LineItems, 1)
	assert.Equal(t, "Classic Tee", sg.lastReq.LineItems[0].Name)
	assert.Equal(t, int64(20000), sg.lastReq.LineItems[0].UnitPriceMinorUnits)
}

func TestInitiateThreadsAttemptIDAsMetadata(t *testing.T) {
	db := newTestDB(t)
	sg := newStubGateway(t)
	svc, _ := newTestService(t, db, sg)

	result, err := svc.Initiate(context.Background(), "USR_1", []types.CartLine{
		{ProductID: "PRD_mug", Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, result.AttemptID, sg.lastReq.Metadata["attempt_id"])
	assert.Contains(t, sg.lastReq.SuccessURL, "attempt_id="+result.AttemptID)
}

func TestInitiateInvalidCart(t *testing.T) {
	db := newTestDB(t)
	sg := newStubGateway(t)
	svc, _ := newTestService(t, db, sg)

	cases := []struct {
		name  string
		lines []types.CartLine
	}{
		{"empty", nil},
		{"zero quantity", []types.CartLine{{ProductID: "PRD_tee", Quantity: 0}}},
		{"negative quantity", []types.CartLine{{ProductID: "PRD_tee", Quantity: -2}}},
		{"negative price", []types.CartLine{{ProductID: "PRD_custom", UnitPriceMinorUnits: -100, Quantity: 1}}},
		{"missing product id", []types.CartLine{{Quantity: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Initiate(context.Background(), "USR_1", tc.lines)
			assert.ErrorIs(t, err, ErrInvalidCart)
		})
	}

	assert.Equal(t, 0, sg.calls, "invalid carts must never reach the gateway")
}

func TestInitiateGatewayFailureLeavesNoState(t *testing.T) {
	db := newTestDB(t)
	sg := newStubGateway(t)
	sg.status = http.StatusInternalServerError
	svc, _ := newTestService(t, db, sg)

	_, err := svc.Initiate(context.Background(), "USR_1", []types.CartLine{
		{ProductID: "PRD_tee", Quantity: 1},
	})
	assert.ErrorIs(t, err, gateway.ErrGatewayUnavailable)

	// No dangling attempt and no order
	var attempts, orderRows int64
	require.NoError(t, db.Model(&orders.CheckoutAttempt{}).Count(&attempts).Error)
	require.NoError(t, db.Model(&orders.Order{}).Count(&orderRows).Error)
	assert.Zero(t, attempts)
	assert.Zero(t, orderRows)
}

func TestInitiateFallsBackToStoredCart(t *testing.T) {
	db := newTestDB(t)
	sg := newStubGateway(t)
	svc, _ := newTestService(t, db, sg)
	svc.carts = staticCart{
		{ProductID: "PRD_mug", Quantity: 3},
	}

	result, err := svc.Initiate(context.Background(), "USR_1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), result.TotalMinorUnits)
}

type staticCart types.LineItems

func (s staticCart) Get(userID string) (types.LineItems, error) {
	return types.LineItems(s), nil
}

func TestRepeatedTotalsAreStable(t *testing.T) {
	lines := types.LineItems{
		{ProductID: "PRD_a", UnitPriceMinorUnits: 3333, Quantity: 3},
		{ProductID: "PRD_b", UnitPriceMinorUnits: 1, Quantity: 99999},
		{ProductID: "PRD_c", UnitPriceMinorUnits: 19999, Quantity: 7},
	}

	want := int64(3333*3 + 99999 + 19999*7)
	for i := 0; i < 100; i++ {
		assert.Equal(t, want, lines.Total())
	}
}
