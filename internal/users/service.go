package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/validate"
)

const emailConstraint = "users_email_key"

// Service manages customer and staff records.
type Service interface {
	List(ctx context.Context, filters Filters) ([]UserDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	GetByEmail(ctx context.Context, email string) (*UserDTO, error)
	Create(ctx context.Context, input CreateUserInput) (*UserDTO, error)
	Register(ctx context.Context, input CreateUserInput) (*UserDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*UserDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService constructs the users service.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) List(ctx context.Context, filters Filters) ([]UserDTO, error) {
	var fields []pkgerrors.FieldError
	if filters.Role != "" && !filters.Role.IsValid() {
		fields = append(fields, pkgerrors.FieldError{Path: "role", Message: "must be one of: customer, admin"})
	}
	if filters.Status != "" && !filters.Status.IsValid() {
		fields = append(fields, pkgerrors.FieldError{Path: "status", Message: "must be one of: active, inactive"})
	}
	if err := validate.Errors(fields); err != nil {
		return nil, err
	}

	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(user)
	return &dto, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*UserDTO, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.Validation([]pkgerrors.FieldError{{Path: "email", Message: "is required"}})
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user by email")
	}
	dto := FromModel(user)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, input CreateUserInput) (*UserDTO, error) {
	input.normalize()
	if err := validate.Errors(validate.Struct(input)); err != nil {
		return nil, err
	}
	return s.insert(ctx, input.toModel())
}

// Register is the public signup path: the account is always an active
// customer regardless of the submitted role and status.
func (s *service) Register(ctx context.Context, input CreateUserInput) (*UserDTO, error) {
	input.normalize()
	input.Role = ""
	input.Status = ""
	if err := validate.Errors(validate.Struct(input)); err != nil {
		return nil, err
	}
	user := input.toModel()
	user.Role = enums.UserRoleCustomer
	user.Status = enums.UserStatusActive
	return s.insert(ctx, user)
}

func (s *service) insert(ctx context.Context, user *models.User) (*UserDTO, error) {
	if existing, err := s.repo.FindByEmail(ctx, user.Email); err == nil && existing != nil {
		return nil, emailTaken()
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, emailConstraint) {
			return nil, emailTaken()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert user")
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(ctx, "user.created")
	dto := FromModel(user)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*UserDTO, error) {
	if input.empty() {
		return nil, pkgerrors.Validation([]pkgerrors.FieldError{{Path: "body", Message: "must contain at least one field"}})
	}
	input.normalize()
	if err := validate.Errors(validate.Struct(input)); err != nil {
		return nil, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Email != nil && *input.Email != user.Email {
		other, err := s.repo.FindByEmail(ctx, *input.Email)
		switch {
		case err == nil && other.ID != user.ID:
			return nil, emailTaken()
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
		}
	}

	input.apply(user)
	if err := s.repo.Save(ctx, user); err != nil {
		if db.IsUniqueViolation(err, emailConstraint) {
			return nil, emailTaken()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(ctx, "user.updated")
	dto := FromModel(user)
	return &dto, nil
}

// Delete deactivates the user. The row and its sales history are kept.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.SetStatus(ctx, id, enums.UserStatusInactive)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate user")
	}
	if !found {
		return pkgerrors.NotFound("user")
	}
	ctx = s.logg.WithUserID(ctx, id.String())
	s.logg.Info(ctx, "user.deactivated")
	return nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "user stats")
	}
	return stats, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func emailTaken() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "email already registered").
		WithDetails([]pkgerrors.FieldError{{Path: "email", Message: "is already registered"}})
}
