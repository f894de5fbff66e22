package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/validate"
)

// Service exposes catalog management operations.
type Service interface {
	List(ctx context.Context, params ListParams) ([]ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, input ProductInput, image *ImageUpload) (*ProductDTO, error)
	CreateBulk(ctx context.Context, inputs []ProductInput) ([]ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput, image *ImageUpload) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Inventory(ctx context.Context) (*InventorySummary, error)
}

// ServiceParams groups the collaborators of the product service.
type ServiceParams struct {
	Repo           *Repository
	Tx             db.TxRunner
	Images         ImageStore
	DefaultImage   string
	MaxUploadBytes int64
	Logger         *logger.Logger
}

type service struct {
	repo           *Repository
	tx             db.TxRunner
	images         ImageStore
	defaultImage   string
	maxUploadBytes int64
	logg           *logger.Logger
}

// NewService constructs a product service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Images == nil {
		return nil, fmt.Errorf("image store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.MaxUploadBytes <= 0 {
		params.MaxUploadBytes = 5 << 20
	}
	return &service{
		repo:           params.Repo,
		tx:             params.Tx,
		images:         params.Images,
		defaultImage:   params.DefaultImage,
		maxUploadBytes: params.MaxUploadBytes,
		logg:           params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, params ListParams) ([]ProductDTO, error) {
	rows, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return fromModels(rows), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(product)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, input ProductInput, image *ImageUpload) (*ProductDTO, error) {
	if err := validate.Errors(input.Validate("")); err != nil {
		return nil, err
	}
	imagePath, err := s.storeImage(ctx, image)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:            input.Name,
		Price:           input.Price.Round(2),
		Stock:           *input.Stock,
		Category:        input.Category,
		Characteristics: input.Characteristics,
		ImagePath:       imagePath,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		s.discardImages(ctx, s.uploaded(imagePath))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
	}

	ctx = s.logg.WithField(ctx, "product_id", product.ID.String())
	s.logg.Info(ctx, "product.created")
	dto := FromModel(product)
	return &dto, nil
}

func (s *service) CreateBulk(ctx context.Context, inputs []ProductInput) ([]ProductDTO, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.Validation([]pkgerrors.FieldError{{Path: "items", Message: "must contain at least 1 item(s)"}})
	}
	var fields []pkgerrors.FieldError
	for i := range inputs {
		fields = append(fields, inputs[i].Validate(itemPath(i))...)
	}
	if err := validate.Errors(fields); err != nil {
		return nil, err
	}

	rows := make([]models.Product, 0, len(inputs))
	for _, input := range inputs {
		rows = append(rows, models.Product{
			Name:            input.Name,
			Price:           input.Price.Round(2),
			Stock:           *input.Stock,
			Category:        input.Category,
			Characteristics: input.Characteristics,
			ImagePath:       s.defaultImage,
		})
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateMany(ctx, rows)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert products")
	}

	ctx = s.logg.WithField(ctx, "count", len(rows))
	s.logg.Info(ctx, "product.bulk_created")
	return fromModels(rows), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input ProductInput, image *ImageUpload) (*ProductDTO, error) {
	if err := validate.Errors(input.Validate("")); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, s.repo, id); err != nil {
		return nil, err
	}

	var newImage string
	if image != nil {
		path, err := s.storeImage(ctx, image)
		if err != nil {
			return nil, err
		}
		newImage = path
	}

	var (
		updated  *models.Product
		oldImage string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := s.load(ctx, txRepo, id)
		if err != nil {
			return err
		}
		oldImage = product.ImagePath

		product.Name = input.Name
		product.Price = input.Price.Round(2)
		product.Stock = *input.Stock
		product.Category = input.Category
		product.Characteristics = input.Characteristics
		if newImage != "" {
			product.ImagePath = newImage
		}
		if err := txRepo.Save(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		updated = product
		return nil
	})
	if err != nil {
		s.discardImages(ctx, s.uploaded(newImage))
		return nil, err
	}

	if newImage != "" && oldImage != newImage {
		s.discardImages(ctx, s.uploaded(oldImage))
	}

	ctx = s.logg.WithField(ctx, "product_id", id.String())
	s.logg.Info(ctx, "product.updated")
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.load(ctx, s.repo, id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if !deleted {
		return pkgerrors.NotFound("product")
	}
	s.discardImages(ctx, s.uploaded(product.ImagePath))

	ctx = s.logg.WithField(ctx, "product_id", id.String())
	s.logg.Info(ctx, "product.deleted")
	return nil
}

func (s *service) Inventory(ctx context.Context) (*InventorySummary, error) {
	summary, err := s.repo.Inventory(ctx, LowStockThreshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inventory summary")
	}
	return summary, nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Product, error) {
	product, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// storeImage persists the upload and returns its public path, or the
// default image when nothing was uploaded.
func (s *service) storeImage(ctx context.Context, image *ImageUpload) (string, error) {
	prepared, err := prepareImage(image, s.maxUploadBytes)
	if err != nil {
		return "", err
	}
	if prepared == nil {
		return s.defaultImage, nil
	}
	path, err := s.images.Save(ctx, prepared.name, prepared.contentType, prepared.reader())
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store product image")
	}
	return path, nil
}

// uploaded filters out the default image, which is never removed.
func (s *service) uploaded(paths ...string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if path != "" && path != s.defaultImage {
			out = append(out, path)
		}
	}
	return out
}

func (s *service) discardImages(ctx context.Context, paths []string) {
	var errs error
	for _, path := range paths {
		errs = multierr.Append(errs, s.images.Delete(ctx, path))
	}
	if errs != nil {
		ctx = s.logg.WithField(ctx, "images", paths)
		s.logg.Error(ctx, "product image cleanup failed", errs)
	}
}
