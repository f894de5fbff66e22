package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Sale is an order placed by a customer or recorded by the owner. Customer
// fields are a snapshot taken when the sale was created.
type Sale struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SaleNumber    string              `gorm:"column:sale_number;not null;uniqueIndex:sales_sale_number_key"`
	UserID        *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	UserName      string              `gorm:"column:user_name;not null"`
	UserEmail     *string             `gorm:"column:user_email"`
	UserPhone     *string             `gorm:"column:user_phone"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status        enums.SaleStatus    `gorm:"column:status;type:text;not null;index"`
	Notes         *string             `gorm:"column:notes"`
	Items         []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Sale) TableName() string { return "sales" }

func (s *Sale) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SaleItem is a denormalized copy of the product at order time.
type SaleItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SaleID      uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	Position    int             `gorm:"column:position;not null"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	ProductName string          `gorm:"column:product_name;not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
}

func (SaleItem) TableName() string { return "sale_items" }

func (i *SaleItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
