package orders

import (
	"time"

	"github.com/ksred/storefront-api/internal/types"
	"gorm.io/gorm"
)

const (
	StatusPending   = "PENDING"
	StatusFinalized = "FINALIZED"
)

// CheckoutAttempt is the server-side record of an initiated checkout. Its
// attempt ID is threaded through the payment provider as opaque metadata and
// echoed back on every completion signal. Never mutated after creation except
// for the status flip to FINALIZED.
type CheckoutAttempt struct {
	gorm.Model       `json:"-"`
	AttemptID        string          `gorm:"uniqueIndex" json:"attempt_id"`
	UserID           string          `gorm:"index" json:"user_id"`
	GatewaySessionID string          `json:"gateway_session_id"`
	Lines            types.LineItems `gorm:"type:text" json:"lines"`
	TotalMinorUnits  int64           `json:"total_minor_units"`
	Status           string          `json:"status"` // PENDING, FINALIZED
	CreatedAt        time.Time       `json:"created_at"`
}

// Order is the finalized purchase record. The unique index on AttemptID
// collapses the two racing completion paths (browser redirect and provider
// webhook) into at most one row per attempt.
type Order struct {
	gorm.Model      `json:"-"`
	OrderID         string          `gorm:"uniqueIndex" json:"order_id"`
	AttemptID       string          `gorm:"uniqueIndex" json:"attempt_id"`
	UserID          string          `gorm:"index" json:"user_id"`
	Lines           types.LineItems `gorm:"type:text" json:"lines"`
	TotalMinorUnits int64           `json:"total_minor_units"`
	PlacedAt        time.Time       `json:"placed_at"`
}

// WebhookEvent is an audit row recorded per delivery attempt, including
// rejected ones. EventID is indexed but deliberately not unique: the provider
// may redeliver the same logical event, and deduplication is done by the
// order row's attempt_id constraint, not here.
type WebhookEvent struct {
	gorm.Model     `json:"-"`
	EventID        string    `gorm:"index" json:"event_id"`
	EventType      string    `json:"event_type"`
	AttemptID      string    `json:"attempt_id"`
	SignatureValid bool      `json:"signature_valid"`
	ReceivedAt     time.Time `json:"received_at"`
}
