package catalog

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateProduct(product *Product) error {
	return d.db.Create(product).Error
}

func (d *Database) GetProduct(productID string) (*Product, error) {
	var product Product
	if err := d.db.Where("product_id = ?", productID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (d *Database) ListActiveProducts() ([]Product, error) {
	var products []Product
	if err := d.db.Where("active = ?", true).Order("name ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
