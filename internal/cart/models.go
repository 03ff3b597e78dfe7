package cart

import (
	"time"

	"github.com/ksred/storefront-api/internal/types"
	"gorm.io/gorm"
)

// Cart holds a user's current line items. Lines are serialized as a single
// JSON column; the row is deleted on clear or successful order placement.
type Cart struct {
	gorm.Model `json:"-"`
	UserID     string          `gorm:"uniqueIndex" json:"user_id"`
	Lines      types.LineItems `gorm:"type:text" json:"lines"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
