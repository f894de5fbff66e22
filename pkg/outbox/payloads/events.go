package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// SaleLine is the per-item snapshot carried by sale events.
type SaleLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// SaleCreatedEvent is emitted when the owner records a sale or a customer
// places a storefront order.
type SaleCreatedEvent struct {
	SaleID        uuid.UUID           `json:"sale_id"`
	SaleNumber    string              `json:"sale_number"`
	UserID        *uuid.UUID          `json:"user_id,omitempty"`
	UserName      string              `json:"user_name"`
	UserEmail     *string             `json:"user_email,omitempty"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Status        enums.SaleStatus    `json:"status"`
	Source        string              `json:"source"`
	Items         []SaleLine          `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

// SaleStatusChangedEvent is emitted whenever an update moves a sale between
// statuses.
type SaleStatusChangedEvent struct {
	SaleID         uuid.UUID           `json:"sale_id"`
	SaleNumber     string              `json:"sale_number"`
	PreviousStatus enums.SaleStatus    `json:"previous_status"`
	Status         enums.SaleStatus    `json:"status"`
	Total          decimal.Decimal     `json:"total"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	StockRestored  bool                `json:"stock_restored"`
	StockApplied   bool                `json:"stock_applied"`
}

// SaleDeletedEvent is emitted after a sale and its items are removed.
type SaleDeletedEvent struct {
	SaleID        uuid.UUID        `json:"sale_id"`
	SaleNumber    string           `json:"sale_number"`
	Status        enums.SaleStatus `json:"status"`
	Total         decimal.Decimal  `json:"total"`
	StockRestored bool             `json:"stock_restored"`
}

// ProductStockLowEvent is emitted when a stock decrement leaves a product at
// or below the low stock threshold.
type ProductStockLowEvent struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Stock       int       `json:"stock"`
	Threshold   int       `json:"threshold"`
}

// Sale sources.
const (
	SourceAdmin      = "admin"
	SourceStorefront = "storefront"
)
