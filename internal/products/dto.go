package product

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/angelmondragon/storefront-backend/pkg/validate"
)

// LowStockThreshold marks products that need restocking.
const LowStockThreshold = 5

// ProductDTO represents the product payload returned to clients.
type ProductDTO struct {
	ID              uuid.UUID             `json:"id"`
	Name            string                `json:"name"`
	Price           decimal.Decimal       `json:"price"`
	Stock           int                   `json:"stock"`
	Category        string                `json:"category"`
	Characteristics types.Characteristics `json:"characteristics"`
	ImagePath       string                `json:"image"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// FromModel maps the persistence model to its DTO.
func FromModel(p *models.Product) ProductDTO {
	chars := p.Characteristics
	if chars == nil {
		chars = types.Characteristics{}
	}
	return ProductDTO{
		ID:              p.ID,
		Name:            p.Name,
		Price:           p.Price,
		Stock:           p.Stock,
		Category:        p.Category,
		Characteristics: chars,
		ImagePath:       p.ImagePath,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func fromModels(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}

// ProductInput is the full set of writable product fields. It is used for
// create, bulk create and replace.
type ProductInput struct {
	Name            string                `json:"name" validate:"required,min=3"`
	Price           decimal.Decimal       `json:"price" validate:"gt=0"`
	Stock           *int                  `json:"stock" validate:"required,gte=0"`
	Category        string                `json:"category" validate:"required"`
	Characteristics types.Characteristics `json:"characteristics"`
}

func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Characteristics == nil {
		in.Characteristics = types.Characteristics{}
	}
	for key, value := range in.Characteristics {
		in.Characteristics[key] = strings.TrimSpace(value)
	}
}

// Validate normalizes the input and returns every failing field. Paths are
// prefixed with prefix when set, e.g. items[2].name.
func (in *ProductInput) Validate(prefix string) []pkgerrors.FieldError {
	in.normalize()
	fields := validate.StructAt(prefix, in)
	for _, key := range in.Characteristics.Missing(types.CharacteristicBrand, types.CharacteristicColor) {
		path := "characteristics." + key
		if prefix != "" {
			path = prefix + "." + path
		}
		fields = append(fields, pkgerrors.FieldError{Path: path, Message: "is required"})
	}
	if in.Price.IsPositive() && !in.Price.Equal(in.Price.Round(2)) {
		path := "price"
		if prefix != "" {
			path = prefix + "." + path
		}
		fields = append(fields, pkgerrors.FieldError{Path: path, Message: "must have at most 2 decimal places"})
	}
	return fields
}

// ListParams filters the catalog. Zero values disable a filter.
type ListParams struct {
	Category string
	Search   string
	InStock  bool
}

// InventorySummary aggregates catalog stock for the dashboard.
type InventorySummary struct {
	Total      int64           `json:"total"`
	LowStock   int64           `json:"low_stock"`
	OutOfStock int64           `json:"out_of_stock"`
	TotalValue decimal.Decimal `json:"total_value"`
}

func itemPath(i int) string {
	return fmt.Sprintf("items[%d]", i)
}
