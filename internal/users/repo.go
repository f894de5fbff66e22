package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByEmail retrieves the user matching the provided email, ignoring case.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns users matching the filters, newest first.
func (r *Repository) List(ctx context.Context, filters Filters) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if name := strings.TrimSpace(filters.Name); name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if email := strings.TrimSpace(filters.Email); email != "" {
		query = query.Where("LOWER(email) LIKE ?", "%"+strings.ToLower(email)+"%")
	}
	if filters.Role != "" {
		query = query.Where("role = ?", filters.Role)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	var rows []models.User
	err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

// Save writes every column of an existing user.
func (r *Repository) Save(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// SetStatus flips the status column and reports whether the user exists.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.UserStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("status", status)
	return res.RowsAffected == 1, res.Error
}

// Stats counts users grouped by status and role.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS inactive,
			COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0) AS customers,
			COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0) AS admins`,
			enums.UserStatusActive, enums.UserStatusInactive, enums.UserRoleCustomer, enums.UserRoleAdmin).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
