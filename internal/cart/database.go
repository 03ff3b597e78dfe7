package cart

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

func (d *Database) GetByUser(userID string) (*Cart, error) {
	var c Cart
	if err := d.db.Where("user_id = ?", userID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (d *Database) Save(c *Cart) error {
	return d.db.Save(c).Error
}

func (d *Database) DeleteByUser(userID string) error {
	return d.db.Unscoped().Where("user_id = ?", userID).Delete(&Cart{}).Error
}
