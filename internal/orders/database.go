package orders

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAttempt(attempt *CheckoutAttempt) error {
	return d.db.Create(attempt).Error
}

func (d *Database) GetAttempt(attemptID string) (*CheckoutAttempt, error) {
	var attempt CheckoutAttempt
	if err := d.db.Where("attempt_id = ?", attemptID).First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

// MarkAttemptFinalized flips the attempt status. Best effort: the order row
// itself, not this flag, is the source of truth for finalization.
func (d *Database) MarkAttemptFinalized(attemptID string) error {
	return d.db.Model(&CheckoutAttempt{}).
		Where("attempt_id = ?", attemptID).
		Update("status", StatusFinalized).Error
}

// InsertOrderIfAbsent atomically creates the order unless one already exists
// for the same attempt ID, in which case the existing row is returned
// unchanged with created=false. The conditional insert runs as a single
// statement against the unique index, so two concurrent finalizers cannot
// both create a row; conflicts are never surfaced as errors.
func (d *Database) InsertOrderIfAbsent(order *Order) (*Order, bool, error) {
	res := d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}},
		DoNothing: true,
	}).Create(order)
	if res.Error != nil {
		return nil, false, res.Error
	}

	if res.RowsAffected == 0 {
		existing, err := d.GetOrderByAttempt(order.AttemptID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			// Conflict fired but the winning row is not visible yet.
			return nil, false, gorm.ErrRecordNotFound
		}
		return existing, false, nil
	}

	return order, true, nil
}

func (d *Database) GetOrderByAttempt(attemptID string) (*Order, error) {
	var order Order
	if err := d.db.Where("attempt_id = ?", attemptID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) ListOrdersByUser(userID string) ([]Order, error) {
	var orders []Order
	if err := d.db.Where("user_id = ?", userID).
		Order("placed_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) RecordWebhookEvent(event *WebhookEvent) error {
	return d.db.Create(event).Error
}

// DeleteExpiredAttempts removes attempts that stayed PENDING past the
// retention cutoff. Finalized attempts are kept alongside their orders.
func (d *Database) DeleteExpiredAttempts(cutoff time.Time) (int64, error) {
	res := d.db.Unscoped().
		Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Delete(&CheckoutAttempt{})
	return res.RowsAffected, res.Error
}
