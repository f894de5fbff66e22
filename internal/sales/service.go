package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/validate"
)

const (
	saleNumberConstraint = "sales_sale_number_key"
	maxNumberAttempts    = 3
	expireBatchSize      = 500
)

// Service records sales and keeps product stock in step with them.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*SaleDTO, error)
	PlaceOrder(ctx context.Context, input CreateInput) (*SaleDTO, error)
	List(ctx context.Context, filters Filters, page pagination.Params) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*SaleDTO, error)
	ListByCustomerEmail(ctx context.Context, email string) ([]SaleDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*SaleDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, rng Range) (*Stats, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// ServiceParams groups the collaborators of the sales service.
type ServiceParams struct {
	Repo     *Repository
	Products *product.Repository
	Users    userLookup
	Tx       db.TxRunner
	Outbox   outbox.Emitter
	Metrics  *metrics.SalesMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	products *product.Repository
	users    userLookup
	tx       db.TxRunner
	outbox   outbox.Emitter
	metrics  *metrics.SalesMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the sales service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("sales repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case params.Users == nil:
		return nil, fmt.Errorf("user lookup required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		users:    params.Users,
		tx:       params.Tx,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Create records a sale from the admin panel. Status defaults to completed.
func (s *service) Create(ctx context.Context, input CreateInput) (*SaleDTO, error) {
	input.normalize()
	if input.Status == "" {
		input.Status = string(enums.SaleStatusCompleted)
	}
	return s.create(ctx, input, payloads.SourceAdmin)
}

// PlaceOrder records a storefront order. Orders always start pending and
// are priced from the catalog.
func (s *service) PlaceOrder(ctx context.Context, input CreateInput) (*SaleDTO, error) {
	input.normalize()
	input.Status = string(enums.SaleStatusPending)
	input.UserID = nil
	items := make([]ItemInput, len(input.Items))
	copy(items, input.Items)
	for i := range items {
		items[i].Price = decimal.Zero
	}
	input.Items = items
	return s.create(ctx, input, payloads.SourceStorefront)
}

func (s *service) create(ctx context.Context, input CreateInput, source string) (*SaleDTO, error) {
	if input.PaymentMethod == "" {
		input.PaymentMethod = string(enums.PaymentMethodCash)
	}
	if err := validate.Errors(validate.Struct(input)); err != nil {
		return nil, err
	}
	if err := s.linkCustomer(ctx, &input); err != nil {
		return nil, err
	}

	var (
		sale *models.Sale
		err  error
	)
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		sale, err = s.insertSale(ctx, input, source)
		if err == nil || !db.IsUniqueViolation(err, saleNumberConstraint) {
			break
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "sale number taken, retrying")
	}
	if err != nil {
		if db.IsUniqueViolation(err, saleNumberConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate sale number")
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			s.metrics.StockConflict()
		}
		return nil, asTyped(err, "create sale")
	}

	s.metrics.SaleCreated(source, sale.Status.String())
	if sale.Status.HoldsStock() {
		s.metrics.RevenueCompleted(sale.PaymentMethod.String(), sale.Total.InexactFloat64())
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"sale_id":     sale.ID.String(),
		"sale_number": sale.SaleNumber,
		"status":      sale.Status,
		"source":      source,
		"total":       sale.Total.String(),
	})
	s.logg.Info(ctx, "sale.created")
	dto := FromModel(sale)
	return &dto, nil
}

// linkCustomer resolves the customer record and fills missing snapshot
// fields from it.
func (s *service) linkCustomer(ctx context.Context, input *CreateInput) error {
	var (
		user *models.User
		err  error
	)
	switch {
	case input.UserID != nil:
		user, err = s.users.FindByID(ctx, *input.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.NotFound("user").WithDetails([]pkgerrors.FieldError{{Path: "user_id", Message: "user not found"}})
		}
	case input.UserEmail != nil:
		user, err = s.users.FindByEmail(ctx, *input.UserEmail)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
	default:
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}

	input.UserID = &user.ID
	if input.UserEmail == nil {
		email := user.Email
		input.UserEmail = &email
	}
	if input.UserPhone == nil {
		input.UserPhone = user.Phone
	}
	return nil
}

func (s *service) insertSale(ctx context.Context, input CreateInput, source string) (*models.Sale, error) {
	status := enums.SaleStatus(input.Status)
	var sale *models.Sale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products := s.products.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(input.Items))
		for _, item := range input.Items {
			ids = append(ids, item.ProductID)
		}
		found, err := products.FindByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}

		items := make([]models.SaleItem, 0, len(input.Items))
		total := decimal.Zero
		for i, line := range input.Items {
			p, ok := found[line.ProductID]
			if !ok {
				return pkgerrors.NotFound("product").WithDetails([]pkgerrors.FieldError{{
					Path:    itemPath(i, "product_id"),
					Message: "product not found",
				}})
			}
			price := line.Price
			if !price.IsPositive() {
				price = p.Price
			}
			price = price.Round(2)
			if !price.IsPositive() {
				return pkgerrors.Validation([]pkgerrors.FieldError{{
					Path:    itemPath(i, "price"),
					Message: "must be at least 0.01",
				}})
			}
			subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
			total = total.Add(subtotal)
			items = append(items, models.SaleItem{
				Position:    i,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				Price:       price,
				Subtotal:    subtotal,
			})
		}

		if !total.IsPositive() {
			return pkgerrors.Validation([]pkgerrors.FieldError{{Path: "total", Message: "must be greater than 0"}})
		}
		if shortages := checkStock(items, found); len(shortages) > 0 {
			return insufficientStock(shortages)
		}

		number, err := s.nextSaleNumber(ctx, repo)
		if err != nil {
			return err
		}
		sale = &models.Sale{
			SaleNumber:    number,
			UserID:        input.UserID,
			UserName:      input.UserName,
			UserEmail:     input.UserEmail,
			UserPhone:     input.UserPhone,
			Total:         total,
			PaymentMethod: enums.PaymentMethod(input.PaymentMethod),
			Status:        status,
			Notes:         input.Notes,
			Items:         items,
		}
		if err := repo.Create(ctx, sale); err != nil {
			return err
		}

		if status.HoldsStock() {
			if err := s.applyStock(ctx, tx, sale.Items); err != nil {
				return err
			}
		}

		lines := make([]payloads.SaleLine, 0, len(sale.Items))
		for _, item := range sale.Items {
			lines = append(lines, payloads.SaleLine{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				Price:       item.Price,
				Subtotal:    item.Subtotal,
			})
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleCreated,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Data: payloads.SaleCreatedEvent{
				SaleID:        sale.ID,
				SaleNumber:    sale.SaleNumber,
				UserID:        sale.UserID,
				UserName:      sale.UserName,
				UserEmail:     sale.UserEmail,
				Total:         sale.Total,
				PaymentMethod: sale.PaymentMethod,
				Status:        sale.Status,
				Source:        source,
				Items:         lines,
				CreatedAt:     sale.CreatedAt,
			},
		})
	})
	return sale, err
}

func (s *service) nextSaleNumber(ctx context.Context, repo *Repository) (string, error) {
	year := s.now().Year()
	latest, err := repo.LatestSaleNumber(ctx, yearPrefix(year))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest sale number")
	}
	return formatSaleNumber(year, nextSequence(latest, year)), nil
}

func (s *service) List(ctx context.Context, filters Filters, page pagination.Params) (*ListResult, error) {
	var fields []pkgerrors.FieldError
	if filters.Status != "" && !filters.Status.IsValid() {
		fields = append(fields, pkgerrors.FieldError{Path: "status", Message: "must be one of: pending, completed, cancelled"})
	}
	if filters.PaymentMethod != "" && !filters.PaymentMethod.IsValid() {
		fields = append(fields, pkgerrors.FieldError{Path: "payment_method", Message: "must be one of: cash, transfer, card, other"})
	}
	if filters.StartDate != nil && filters.EndDate != nil && dayStart(*filters.StartDate).After(dayEnd(*filters.EndDate)) {
		fields = append(fields, pkgerrors.FieldError{Path: "end_date", Message: "must not be before start_date"})
	}
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		fields = append(fields, pkgerrors.FieldError{Path: "cursor", Message: "is invalid"})
	}
	if err := validate.Errors(fields); err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(page.Limit)
	rows, err := s.repo.List(ctx, filters, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}
	rows, next := pagination.Page(rows, limit, func(m models.Sale) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return &ListResult{Sales: fromModels(rows), NextCursor: next}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*SaleDTO, error) {
	sale, err := s.load(ctx, s.repo, id, false)
	if err != nil {
		return nil, err
	}
	dto := FromModel(sale)
	return &dto, nil
}

func (s *service) ListByCustomerEmail(ctx context.Context, email string) ([]SaleDTO, error) {
	if err := validate.Errors(validate.Var("email", email, "required,email")); err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	rows, err := s.repo.ListForCustomer(ctx, user.ID, user.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer sales")
	}
	return fromModels(rows), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*SaleDTO, error) {
	if input.empty() {
		return nil, pkgerrors.Validation([]pkgerrors.FieldError{{
			Path:    "body",
			Message: "must contain status, payment_method or notes",
		}})
	}
	input.normalize()
	if err := validate.Errors(validate.Struct(input)); err != nil {
		return nil, err
	}

	var (
		updated  *models.Sale
		previous enums.SaleStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		previous = sale.Status

		fields := map[string]any{}
		if input.Status != nil {
			sale.Status = enums.SaleStatus(*input.Status)
			fields["status"] = sale.Status
		}
		if input.PaymentMethod != nil {
			sale.PaymentMethod = enums.PaymentMethod(*input.PaymentMethod)
			fields["payment_method"] = sale.PaymentMethod
		}
		if input.Notes != nil {
			sale.Notes = trimOptional(input.Notes)
			fields["notes"] = sale.Notes
		}

		restored, applied, err := s.reconcile(ctx, tx, sale.Items, previous, sale.Status)
		if err != nil {
			return err
		}
		if err := repo.UpdateFields(ctx, sale.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sale")
		}
		updated, err = s.load(ctx, repo, id, false)
		if err != nil {
			return err
		}
		if previous == sale.Status {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleStatusChanged,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Data: payloads.SaleStatusChangedEvent{
				SaleID:         sale.ID,
				SaleNumber:     sale.SaleNumber,
				PreviousStatus: previous,
				Status:         sale.Status,
				Total:          sale.Total,
				PaymentMethod:  sale.PaymentMethod,
				StockRestored:  restored,
				StockApplied:   applied,
			},
		})
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			s.metrics.StockConflict()
		}
		return nil, asTyped(err, "update sale")
	}

	if previous != updated.Status {
		s.metrics.StatusChanged(previous.String(), updated.Status.String())
		if updated.Status.HoldsStock() {
			s.metrics.RevenueCompleted(updated.PaymentMethod.String(), updated.Total.InexactFloat64())
		}
		ctx = s.logg.WithFields(ctx, map[string]any{
			"sale_id":         updated.ID.String(),
			"previous_status": previous,
			"status":          updated.Status,
		})
		s.logg.Info(ctx, "sale.status_changed")
	}
	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	var deleted *models.Sale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := s.load(ctx, repo, id, true)
		if err != nil {
			return err
		}
		restored := false
		if sale.Status.HoldsStock() {
			if err := s.restoreStock(ctx, tx, sale.Items); err != nil {
				return err
			}
			restored = true
		}
		if err := repo.Delete(ctx, sale.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete sale")
		}
		deleted = sale
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleDeleted,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Data: payloads.SaleDeletedEvent{
				SaleID:        sale.ID,
				SaleNumber:    sale.SaleNumber,
				Status:        sale.Status,
				Total:         sale.Total,
				StockRestored: restored,
			},
		})
	})
	if err != nil {
		return asTyped(err, "delete sale")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"sale_id":     deleted.ID.String(),
		"sale_number": deleted.SaleNumber,
		"status":      deleted.Status,
	})
	s.logg.Info(ctx, "sale.deleted")
	return nil
}

// Stats aggregates completed sales. Range ends are widened to whole days.
func (s *service) Stats(ctx context.Context, rng Range) (*Stats, error) {
	if rng.Start != nil {
		start := dayStart(*rng.Start)
		rng.Start = &start
	}
	if rng.End != nil {
		end := dayEnd(*rng.End)
		rng.End = &end
	}
	if rng.Start != nil && rng.End != nil && rng.Start.After(*rng.End) {
		return nil, pkgerrors.Validation([]pkgerrors.FieldError{{Path: "end_date", Message: "must not be before start_date"}})
	}
	stats, err := s.repo.Stats(ctx, rng)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sales stats")
	}
	return stats, nil
}

// ExpirePending cancels pending orders created before cutoff. Pending sales
// hold no stock, so only the status changes.
func (s *service) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	expired := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.PendingBefore(ctx, cutoff, expireBatchSize)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending sales")
		}
		for _, sale := range rows {
			ok, err := repo.TransitionStatus(ctx, sale.ID, enums.SaleStatusPending, enums.SaleStatusCancelled)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel pending sale")
			}
			if !ok {
				continue
			}
			expired++
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSaleStatusChanged,
				AggregateType: enums.AggregateSale,
				AggregateID:   sale.ID,
				Actor:         outbox.SystemActor(),
				Data: payloads.SaleStatusChangedEvent{
					SaleID:         sale.ID,
					SaleNumber:     sale.SaleNumber,
					PreviousStatus: enums.SaleStatusPending,
					Status:         enums.SaleStatusCancelled,
					Total:          sale.Total,
					PaymentMethod:  sale.PaymentMethod,
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, asTyped(err, "expire pending sales")
	}
	for i := 0; i < expired; i++ {
		s.metrics.StatusChanged(enums.SaleStatusPending.String(), enums.SaleStatusCancelled.String())
	}
	return expired, nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID, forUpdate bool) (*models.Sale, error) {
	sale, err := repo.FindByID(ctx, id, forUpdate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("sale")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	return sale, nil
}

// reconcile adjusts stock for a status transition: leaving completed puts
// the items back, entering completed takes them out.
func (s *service) reconcile(ctx context.Context, tx *gorm.DB, items []models.SaleItem, from, to enums.SaleStatus) (restored, applied bool, err error) {
	switch {
	case from.HoldsStock() && !to.HoldsStock():
		return true, false, s.restoreStock(ctx, tx, items)
	case !from.HoldsStock() && to.HoldsStock():
		return false, true, s.applyStock(ctx, tx, items)
	default:
		return false, false, nil
	}
}

// applyStock decrements every product conditionally. Any shortfall aborts
// the surrounding transaction.
func (s *service) applyStock(ctx context.Context, tx *gorm.DB, items []models.SaleItem) error {
	products := s.products.WithTx(tx)
	var shortages []StockShortage
	for _, q := range groupQuantities(items) {
		available, ok, err := products.DecrementStock(ctx, q.productID, q.quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			if available, err = products.StockOf(ctx, q.productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
			}
			shortages = append(shortages, StockShortage{
				ProductID:   q.productID,
				ProductName: q.name,
				Requested:   q.quantity,
				Available:   available,
			})
			continue
		}
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"product_id": q.productID.String(),
			"delta":      -q.quantity,
			"stock":      available,
		}), "stock decremented")

		before := available + q.quantity
		if before > product.LowStockThreshold && available <= product.LowStockThreshold {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventProductStockLow,
				AggregateType: enums.AggregateProduct,
				AggregateID:   q.productID,
				Data: payloads.ProductStockLowEvent{
					ProductID:   q.productID,
					ProductName: q.name,
					Stock:       available,
					Threshold:   product.LowStockThreshold,
				},
			}); err != nil {
				return err
			}
		}
	}
	if len(shortages) > 0 {
		return insufficientStock(shortages)
	}
	return nil
}

// restoreStock puts item quantities back. Products deleted since the sale
// are skipped.
func (s *service) restoreStock(ctx context.Context, tx *gorm.DB, items []models.SaleItem) error {
	products := s.products.WithTx(tx)
	for _, q := range groupQuantities(items) {
		ok, err := products.IncrementStock(ctx, q.productID, q.quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
		fields := s.logg.WithFields(ctx, map[string]any{
			"product_id": q.productID.String(),
			"delta":      q.quantity,
		})
		if !ok {
			s.logg.Warn(fields, "stock restore skipped, product no longer exists")
			continue
		}
		s.logg.Debug(fields, "stock restored")
	}
	return nil
}

type productQuantity struct {
	productID uuid.UUID
	name      string
	quantity  int
}

// groupQuantities sums quantities per product in first-seen order.
func groupQuantities(items []models.SaleItem) []productQuantity {
	index := map[uuid.UUID]int{}
	var out []productQuantity
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			out[i].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, productQuantity{productID: item.ProductID, name: item.ProductName, quantity: item.Quantity})
	}
	return out
}

func checkStock(items []models.SaleItem, found map[uuid.UUID]models.Product) []StockShortage {
	var shortages []StockShortage
	for _, q := range groupQuantities(items) {
		p := found[q.productID]
		if p.Stock < q.quantity {
			shortages = append(shortages, StockShortage{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   q.quantity,
				Available:   p.Stock,
			})
		}
	}
	sort.SliceStable(shortages, func(i, j int) bool { return shortages[i].ProductName < shortages[j].ProductName })
	return shortages
}

func insufficientStock(shortages []StockShortage) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").WithDetails(shortages)
}

// asTyped keeps taxonomy errors and wraps anything else as a dependency
// failure.
func asTyped(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
