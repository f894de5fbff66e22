package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Product is a catalog entry. Stock is mutated by admin edits and by sale
// reconciliation.
type Product struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name            string                `gorm:"column:name;not null"`
	Price           decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	Stock           int                   `gorm:"column:stock;not null;default:0"`
	Category        string                `gorm:"column:category;not null;index"`
	Characteristics types.Characteristics `gorm:"column:characteristics;type:jsonb;not null"`
	ImagePath       string                `gorm:"column:image_path;not null"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// BeforeCreate assigns the primary key client-side so sqlite and Postgres
// behave the same.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
