package migrations

import (
	"time"

	"github.com/ksred/storefront-api/internal/catalog"
	"gorm.io/gorm"
)

// SeedCatalog creates the products table and loads the default storefront
// catalog when it is empty. Prices are integer minor units.
func SeedCatalog(db *gorm.DB) error {
	if err := db.AutoMigrate(&catalog.Product{}); err != nil {
		return err
	}

	var count int64
	if err := db.Model(&catalog.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	seed := []catalog.Product{
		{ProductID: "PRD_classic_tee", Name: "Classic Tee", Description: "Heavyweight cotton t-shirt", UnitPriceMinorUnits: 2500, Currency: "cad", Active: true, CreatedAt: now, UpdatedAt: now},
		{ProductID: "PRD_canvas_tote", Name: "Canvas Tote", Description: "Reinforced everyday tote bag", UnitPriceMinorUnits: 1800, Currency: "cad", Active: true, CreatedAt: now, UpdatedAt: now},
		{ProductID: "PRD_enamel_mug", Name: "Enamel Mug", Description: "12oz camp-style enamel mug", UnitPriceMinorUnits: 1500, Currency: "cad", Active: true, CreatedAt: now, UpdatedAt: now},
		{ProductID: "PRD_wool_beanie", Name: "Wool Beanie", Description: "Ribbed merino wool beanie", UnitPriceMinorUnits: 3200, Currency: "cad", Active: true, CreatedAt: now, UpdatedAt: now},
		{ProductID: "PRD_sticker_pack", Name: "Sticker Pack", Description: "Set of six vinyl stickers", UnitPriceMinorUnits: 800, Currency: "cad", Active: true, CreatedAt: now, UpdatedAt: now},
		{ProductID: "PRD_hoodie", Name: "Pullover Hoodie", Description: "Fleece-lined pullover hoodie", UnitPriceMinorUnits: 6500, Currency: "cad", Active: true, CreatedAt: now, UpdatedAt: now},
	}

	return db.Create(&seed).Error
}
