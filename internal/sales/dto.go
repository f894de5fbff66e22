package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// SaleDTO is the sale payload returned to the owner and to customers.
type SaleDTO struct {
	ID            uuid.UUID           `json:"id"`
	SaleNumber    string              `json:"sale_number"`
	UserID        *uuid.UUID          `json:"user_id,omitempty"`
	UserName      string              `json:"user_name"`
	UserEmail     *string             `json:"user_email,omitempty"`
	UserPhone     *string             `json:"user_phone,omitempty"`
	Items         []SaleItemDTO       `json:"items"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Status        enums.SaleStatus    `json:"status"`
	Notes         *string             `json:"notes,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// SaleItemDTO is a line item snapshot.
type SaleItemDTO struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// FromModel maps a sale and its preloaded items to the DTO.
func FromModel(s *models.Sale) SaleDTO {
	items := make([]SaleItemDTO, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, SaleItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Subtotal:    item.Subtotal,
		})
	}
	return SaleDTO{
		ID:            s.ID,
		SaleNumber:    s.SaleNumber,
		UserID:        s.UserID,
		UserName:      s.UserName,
		UserEmail:     s.UserEmail,
		UserPhone:     s.UserPhone,
		Items:         items,
		Total:         s.Total,
		PaymentMethod: s.PaymentMethod,
		Status:        s.Status,
		Notes:         s.Notes,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func fromModels(rows []models.Sale) []SaleDTO {
	out := make([]SaleDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}

// CreateInput is the payload for recording a sale or placing an order.
// Subtotals and the total are always recomputed from price and quantity.
type CreateInput struct {
	UserID        *uuid.UUID      `json:"user_id"`
	UserName      string          `json:"user_name" validate:"required,min=2"`
	UserEmail     *string         `json:"user_email" validate:"omitempty,email"`
	UserPhone     *string         `json:"user_phone"`
	Items         []ItemInput     `json:"items" validate:"required,min=1,dive"`
	Total         decimal.Decimal `json:"total" validate:"omitempty,gt=0"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=cash transfer card other"`
	Status        string          `json:"status" validate:"omitempty,oneof=pending completed cancelled"`
	Notes         *string         `json:"notes"`
}

// ItemInput is one requested line. Price falls back to the catalog price.
type ItemInput struct {
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	Price       decimal.Decimal `json:"price" validate:"omitempty,gt=0"`
	Subtotal    decimal.Decimal `json:"subtotal" validate:"omitempty,gt=0"`
}

func (in *CreateInput) normalize() {
	in.UserName = strings.TrimSpace(in.UserName)
	in.UserEmail = lowerOptional(in.UserEmail)
	in.UserPhone = trimOptional(in.UserPhone)
	in.Notes = trimOptional(in.Notes)
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
}

// UpdateInput lists the only mutable sale fields.
type UpdateInput struct {
	Status        *string `json:"status" validate:"omitempty,oneof=pending completed cancelled"`
	PaymentMethod *string `json:"payment_method" validate:"omitempty,oneof=cash transfer card other"`
	Notes         *string `json:"notes"`
}

func (in *UpdateInput) normalize() {
	if in.Status != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Status))
		in.Status = &v
	}
	if in.PaymentMethod != nil {
		v := strings.ToLower(strings.TrimSpace(*in.PaymentMethod))
		in.PaymentMethod = &v
	}
}

func (in UpdateInput) empty() bool {
	return in.Status == nil && in.PaymentMethod == nil && in.Notes == nil
}

// Filters narrows List. Dates are inclusive calendar days.
type Filters struct {
	StartDate     *time.Time
	EndDate       *time.Time
	Status        enums.SaleStatus
	PaymentMethod enums.PaymentMethod
	UserID        *uuid.UUID
}

// ListResult is a page of sales plus the cursor of the next page.
type ListResult struct {
	Sales      []SaleDTO `json:"sales"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Range bounds Stats. Nil ends are open.
type Range struct {
	Start *time.Time
	End   *time.Time
}

// Stats summarizes completed sales.
type Stats struct {
	TotalSales     int64                                     `json:"total_sales"`
	TotalRevenue   decimal.Decimal                           `json:"total_revenue"`
	TotalItems     int64                                     `json:"total_items"`
	AverageSale    decimal.Decimal                           `json:"average_sale"`
	TopProducts    []TopProduct                              `json:"top_products"`
	PaymentMethods map[enums.PaymentMethod]PaymentMethodStat `json:"payment_methods"`
}

// TopProduct ranks a product by units sold.
type TopProduct struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// PaymentMethodStat aggregates completed sales for one payment method.
type PaymentMethodStat struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// EmptyStats is the zero summary with every payment method present.
func EmptyStats() *Stats {
	methods := make(map[enums.PaymentMethod]PaymentMethodStat, len(enums.PaymentMethods()))
	for _, method := range enums.PaymentMethods() {
		methods[method] = PaymentMethodStat{Total: decimal.Zero}
	}
	return &Stats{
		TotalRevenue:   decimal.Zero,
		AverageSale:    decimal.Zero,
		TopProducts:    []TopProduct{},
		PaymentMethods: methods,
	}
}

// StockShortage names a product that cannot cover the requested quantity.
type StockShortage struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// dayStart and dayEnd widen a date to its first and last millisecond.
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	return dayStart(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

func itemPath(i int, field string) string {
	return fmt.Sprintf("items[%d].%s", i, field)
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	clean := strings.TrimSpace(*value)
	if clean == "" {
		return nil
	}
	return &clean
}

func lowerOptional(value *string) *string {
	clean := trimOptional(value)
	if clean == nil {
		return nil
	}
	lower := strings.ToLower(*clean)
	return &lower
}
