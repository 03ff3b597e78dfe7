package catalog

import (
	"time"

	"gorm.io/gorm"
)

// Product is a catalog entry. UnitPriceMinorUnits is the trusted price used
// for checkout regardless of what the client submits.
type Product struct {
	gorm.Model          `json:"-"`
	ProductID           string    `gorm:"uniqueIndex" json:"product_id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	UnitPriceMinorUnits int64     `json:"unit_price_minor_units"`
	Currency            string    `json:"currency"`
	ImageURL            string    `json:"image_url"`
	Active              bool      `gorm:"index" json:"active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
