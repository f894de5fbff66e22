package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists catalog rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads a single product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the products with the given ids keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// List returns the catalog ordered newest first.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if category := strings.TrimSpace(params.Category); category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if params.InStock {
		query = query.Where("stock > 0")
	}
	var rows []models.Product
	err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// CreateMany inserts every product in a single statement.
func (r *Repository) CreateMany(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&products).Error
}

// Save writes every column of an existing product.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// Delete removes a product by ID and reports whether a row existed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected > 0, res.Error
}

// DecrementStock subtracts qty only when enough stock is available and
// returns what is left. ok is false when the product is missing or short,
// leaving the row as is.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (remaining int, ok bool, err error) {
	q := r.db.WithContext(ctx).Where("id = ? AND stock >= ?", id, qty)
	if dbpkg.IsPostgres(r.db) {
		var rows []models.Product
		res := q.Model(&rows).
			Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock"}}}).
			UpdateColumn("stock", gorm.Expr("stock - ?", qty))
		if res.Error != nil || res.RowsAffected != 1 {
			return 0, false, res.Error
		}
		if len(rows) == 1 {
			return rows[0].Stock, true, nil
		}
	} else {
		res := q.Model(&models.Product{}).UpdateColumn("stock", gorm.Expr("stock - ?", qty))
		if res.Error != nil || res.RowsAffected != 1 {
			return 0, false, res.Error
		}
	}
	remaining, err = r.StockOf(ctx, id)
	return remaining, err == nil, err
}

// IncrementStock adds qty back to the product and reports whether it exists.
func (r *Repository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	return res.RowsAffected == 1, res.Error
}

// StockOf returns the current stock of a product.
func (r *Repository) StockOf(ctx context.Context, id uuid.UUID) (int, error) {
	var stock int
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Select("stock").
		Scan(&stock).Error
	return stock, err
}

type inventoryRow struct {
	Total      int64
	LowStock   int64
	OutOfStock int64
	TotalValue decimal.NullDecimal
}

// Inventory aggregates stock counters across the catalog.
func (r *Repository) Inventory(ctx context.Context, lowStock int) (*InventorySummary, error) {
	var row inventoryRow
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN stock <= ? THEN 1 ELSE 0 END), 0) AS low_stock,
			COALESCE(SUM(CASE WHEN stock = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock,
			SUM(price * stock) AS total_value`, lowStock).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	summary := &InventorySummary{
		Total:      row.Total,
		LowStock:   row.LowStock,
		OutOfStock: row.OutOfStock,
		TotalValue: decimal.Zero,
	}
	if row.TotalValue.Valid {
		summary.TotalValue = row.TotalValue.Decimal.Round(2)
	}
	return summary, nil
}
