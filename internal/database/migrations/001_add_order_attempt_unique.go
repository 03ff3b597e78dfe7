package migrations

import (
	"github.com/ksred/storefront-api/internal/orders"
	"gorm.io/gorm"
)

// AddOrderAttemptUnique creates the orders table and guarantees the unique
// index on attempt_id exists. The index is what makes concurrent finalization
// safe, so it must be present even on databases created by older schemas
// where AutoMigrate will not rebuild an existing column.
func AddOrderAttemptUnique(db *gorm.DB) error {
	if err := db.AutoMigrate(&orders.Order{}); err != nil {
		return err
	}

	migrator := db.Migrator()
	if !migrator.HasIndex(&orders.Order{}, "AttemptID") {
		if err := migrator.CreateIndex(&orders.Order{}, "AttemptID"); err != nil {
			return err
		}
	}

	return nil
}
