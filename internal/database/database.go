package database

import (
	"fmt"
	"os"

	"github.com/ksred/storefront-api/internal/auth"
	"github.com/ksred/storefront-api/internal/cart"
	"github.com/ksred/storefront-api/internal/database/migrations"
	"github.com/ksred/storefront-api/internal/orders"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase() (*gorm.DB, error) {
	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "storefront.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddOrderAttemptUnique(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.SeedCatalog(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&auth.User{},
		&cart.Cart{},
		&orders.CheckoutAttempt{},
		&orders.WebhookEvent{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
