package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// UserDTO is the user payload returned to clients.
type UserDTO struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Phone     *string          `json:"phone,omitempty"`
	Address   *string          `json:"address,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
	Role      enums.UserRole   `json:"role"`
	Status    enums.UserStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// FromModel maps the persistence model to its DTO.
func FromModel(u *models.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Address:   u.Address,
		Notes:     u.Notes,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// CreateUserInput carries the fields accepted when creating a user.
type CreateUserInput struct {
	Name    string  `json:"name" validate:"required,min=2"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
	Role    string  `json:"role" validate:"omitempty,oneof=customer admin"`
	Status  string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (in *CreateUserInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.Phone = cleanOptional(in.Phone)
	in.Address = cleanOptional(in.Address)
	in.Notes = cleanOptional(in.Notes)
}

func (in CreateUserInput) toModel() *models.User {
	role := enums.UserRole(in.Role)
	if role == "" {
		role = enums.UserRoleCustomer
	}
	status := enums.UserStatus(in.Status)
	if status == "" {
		status = enums.UserStatusActive
	}
	return &models.User{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Address: in.Address,
		Notes:   in.Notes,
		Role:    role,
		Status:  status,
	}
}

// UpdateUserInput is a partial update; nil fields are left untouched.
type UpdateUserInput struct {
	Name    *string `json:"name" validate:"omitempty,min=2"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
	Role    *string `json:"role" validate:"omitempty,oneof=customer admin"`
	Status  *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (in *UpdateUserInput) normalize() {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		in.Email = &email
	}
	if in.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*in.Role))
		in.Role = &role
	}
	if in.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*in.Status))
		in.Status = &status
	}
}

func (in UpdateUserInput) empty() bool {
	return in.Name == nil && in.Email == nil && in.Phone == nil && in.Address == nil &&
		in.Notes == nil && in.Role == nil && in.Status == nil
}

func (in UpdateUserInput) apply(u *models.User) {
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Phone != nil {
		u.Phone = cleanOptional(in.Phone)
	}
	if in.Address != nil {
		u.Address = cleanOptional(in.Address)
	}
	if in.Notes != nil {
		u.Notes = cleanOptional(in.Notes)
	}
	if in.Role != nil {
		u.Role = enums.UserRole(*in.Role)
	}
	if in.Status != nil {
		u.Status = enums.UserStatus(*in.Status)
	}
}

// Filters narrows List. Name and Email match substrings case-insensitively.
type Filters struct {
	Name   string
	Email  string
	Role   enums.UserRole
	Status enums.UserStatus
}

// Stats counts users by status and role.
type Stats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Inactive  int64 `json:"inactive"`
	Customers int64 `json:"customers"`
	Admins    int64 `json:"admins"`
}

// NormalizeEmail trims and lowercases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cleanOptional(value *string) *string {
	if value == nil {
		return nil
	}
	clean := strings.TrimSpace(*value)
	if clean == "" {
		return nil
	}
	return &clean
}
