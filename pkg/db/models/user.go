package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// User is a customer or staff record. Rows are never removed; deletion flips
// Status to inactive.
type User struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name      string           `gorm:"column:name;not null"`
	Email     string           `gorm:"column:email;not null;uniqueIndex:users_email_key"`
	Phone     *string          `gorm:"column:phone"`
	Address   *string          `gorm:"column:address"`
	Notes     *string          `gorm:"column:notes"`
	Role      enums.UserRole   `gorm:"column:role;type:text;not null;default:customer"`
	Status    enums.UserStatus `gorm:"column:status;type:text;not null;default:active"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
