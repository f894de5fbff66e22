package sales

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const topProductsLimit = 5

// Repository persists sales and their line items.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func withItems(q *gorm.DB) *gorm.DB {
	return q.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// LatestSaleNumber returns the highest sale number starting with prefix.
func (r *Repository) LatestSaleNumber(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("sale_number LIKE ?", prefix+"%").
		Order("LENGTH(sale_number) DESC").
		Order("sale_number DESC").
		Limit(1).
		Pluck("sale_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", err
	}
	return numbers[0], nil
}

// Create inserts the sale together with its items.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// FindByID loads a sale with its items. With forUpdate the row is locked
// on Postgres until the surrounding transaction ends.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Sale, error) {
	q := r.db.WithContext(ctx)
	if forUpdate && db.IsPostgres(r.db) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sale models.Sale
	if err := withItems(q).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// List returns a page of sales newest first.
func (r *Repository) List(ctx context.Context, filters Filters, cursor *pagination.Cursor, limit int) ([]models.Sale, error) {
	q := r.applyFilters(r.db.WithContext(ctx).Model(&models.Sale{}), filters)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Sale
	err := withItems(q).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) applyFilters(q *gorm.DB, filters Filters) *gorm.DB {
	if filters.StartDate != nil {
		q = q.Where("created_at >= ?", dayStart(*filters.StartDate))
	}
	if filters.EndDate != nil {
		q = q.Where("created_at <= ?", dayEnd(*filters.EndDate))
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.PaymentMethod != "" {
		q = q.Where("payment_method = ?", filters.PaymentMethod)
	}
	if filters.UserID != nil {
		q = q.Where("user_id = ?", *filters.UserID)
	}
	return q
}

// ListForCustomer returns the sales linked to the user or placed with the
// user's email, newest first.
func (r *Repository) ListForCustomer(ctx context.Context, userID uuid.UUID, email string) ([]models.Sale, error) {
	var rows []models.Sale
	err := withItems(r.db.WithContext(ctx)).
		Where("user_id = ? OR LOWER(user_email) = ?", userID, strings.ToLower(email)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// UpdateFields writes the given columns of a sale.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// TransitionStatus moves a sale from one status to another and reports
// whether the row was still in the expected status.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.SaleStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now()})
	return res.RowsAffected == 1, res.Error
}

// Delete removes a sale and its items.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("sale_id = ?", id).Delete(&models.SaleItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Sale{}).Error
}

// PendingBefore lists pending sales created before cutoff.
func (r *Repository) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Sale, error) {
	var rows []models.Sale
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.SaleStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) completedIn(ctx context.Context, rng Range, column string) *gorm.DB {
	q := r.db.WithContext(ctx).Where("s.status = ?", enums.SaleStatusCompleted)
	if rng.Start != nil {
		q = q.Where("s."+column+" >= ?", *rng.Start)
	}
	if rng.End != nil {
		q = q.Where("s."+column+" <= ?", *rng.End)
	}
	return q
}

type totalsRow struct {
	TotalSales   int64
	TotalRevenue decimal.NullDecimal
}

type itemsRow struct {
	TotalItems int64
}

type topProductRow struct {
	ProductID    uuid.UUID
	ProductName  string
	QuantitySold int64
	Revenue      decimal.NullDecimal
}

type methodRow struct {
	PaymentMethod enums.PaymentMethod
	SaleCount     int64
	Revenue       decimal.NullDecimal
}

// Stats aggregates completed sales created within rng.
func (r *Repository) Stats(ctx context.Context, rng Range) (*Stats, error) {
	stats := EmptyStats()

	var totals totalsRow
	if err := r.completedIn(ctx, rng, "created_at").
		Table("sales AS s").
		Select("COUNT(*) AS total_sales, SUM(s.total) AS total_revenue").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	stats.TotalSales = totals.TotalSales
	if totals.TotalRevenue.Valid {
		stats.TotalRevenue = totals.TotalRevenue.Decimal.Round(2)
	}
	if stats.TotalSales > 0 {
		stats.AverageSale = stats.TotalRevenue.DivRound(decimal.NewFromInt(stats.TotalSales), 2)
	}

	var items itemsRow
	if err := r.completedIn(ctx, rng, "created_at").
		Table("sale_items AS si").
		Joins("JOIN sales AS s ON s.id = si.sale_id").
		Select("COALESCE(SUM(si.quantity), 0) AS total_items").
		Scan(&items).Error; err != nil {
		return nil, err
	}
	stats.TotalItems = items.TotalItems

	var top []topProductRow
	if err := r.completedIn(ctx, rng, "created_at").
		Table("sale_items AS si").
		Joins("JOIN sales AS s ON s.id = si.sale_id").
		Select("si.product_id AS product_id, MAX(si.product_name) AS product_name, SUM(si.quantity) AS quantity_sold, SUM(si.subtotal) AS revenue").
		Group("si.product_id").
		Order("quantity_sold DESC").
		Order("revenue DESC").
		Limit(topProductsLimit).
		Scan(&top).Error; err != nil {
		return nil, err
	}
	for _, row := range top {
		revenue := decimal.Zero
		if row.Revenue.Valid {
			revenue = row.Revenue.Decimal.Round(2)
		}
		stats.TopProducts = append(stats.TopProducts, TopProduct{
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			Quantity:    row.QuantitySold,
			Revenue:     revenue,
		})
	}

	var methods []methodRow
	if err := r.completedIn(ctx, rng, "created_at").
		Table("sales AS s").
		Select("s.payment_method AS payment_method, COUNT(*) AS sale_count, SUM(s.total) AS revenue").
		Group("s.payment_method").
		Scan(&methods).Error; err != nil {
		return nil, err
	}
	for _, row := range methods {
		total := decimal.Zero
		if row.Revenue.Valid {
			total = row.Revenue.Decimal.Round(2)
		}
		stats.PaymentMethods[row.PaymentMethod] = PaymentMethodStat{Count: row.SaleCount, Total: total}
	}
	return stats, nil
}
