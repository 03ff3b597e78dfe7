package auth

import (
	"time"

	"gorm.io/gorm"
)

// User is a storefront account. PasswordHash is a bcrypt hash and is never
// serialized.
type User struct {
	gorm.Model   `json:"-"`
	UserID       string    `gorm:"uniqueIndex" json:"user_id"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
