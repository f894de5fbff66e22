package sales

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type fixture struct {
	svc      Service
	conn     *gorm.DB
	products *product.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test"})
	products := product.NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		Products: products,
		Users:    users.NewRepository(client.DB()),
		Tx:       client,
		Outbox:   outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Logger:   logg,
		Now:      func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return &fixture{svc: svc, conn: client.DB(), products: products}
}

func (f *fixture) product(t *testing.T, name string, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		Name:            name,
		Price:           decimal.RequireFromString(price),
		Stock:           stock,
		Category:        "bags",
		Characteristics: types.Characteristics{types.CharacteristicBrand: "Acme", types.CharacteristicColor: "tan"},
		ImagePath:       "/img/default-bag.jpg",
	}
	require.NoError(t, f.products.Create(context.Background(), &p))
	return p
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	stock, err := f.products.StockOf(context.Background(), id)
	require.NoError(t, err)
	return stock
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", eventType).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func line(p models.Product, qty int) ItemInput {
	return ItemInput{ProductID: p.ID, Quantity: qty}
}

func strPtr(s string) *string { return &s }

func TestCreateCompletedDecrementsStock(t *testing.T) {
	f := newFixture(t)
	tote := f.product(t, "Tote", "20.00", 10)
	clutch := f.product(t, "Clutch", "15.50", 6)

	sale, err := f.svc.Create(context.Background(), CreateInput{
		UserName: "Walk-in",
		Items:    []ItemInput{line(tote, 2), line(clutch, 1), line(tote, 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, "V20260001", sale.SaleNumber)
	assert.Equal(t, enums.SaleStatusCompleted, sale.Status)
	assert.Equal(t, enums.PaymentMethodCash, sale.PaymentMethod)
	assert.Equal(t, "75.5", sale.Total.String())
	require.Len(t, sale.Items, 3)
	assert.Equal(t, "Tote", sale.Items[0].ProductName)
	assert.Equal(t, "40", sale.Items[0].Subtotal.String())

	assert.Equal(t, 7, f.stock(t, tote.ID))
	assert.Equal(t, 5, f.stock(t, clutch.ID))

	created := f.events(t, enums.EventSaleCreated)
	require.Len(t, created, 1)
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(created[0].Payload, &envelope))
	var data payloads.SaleCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, sale.ID, data.SaleID)
	assert.Equal(t, payloads.SourceAdmin, data.Source)
	assert.Len(t, data.Items, 3)

	assert.Len(t, f.events(t, enums.EventProductStockLow), 1, "only the clutch crossed the threshold")
}

func TestSaleNumbersIncrement(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Wallet", "9.99", 50)
	ctx := context.Background()

	require.NoError(t, f.conn.Create(&models.Sale{
		SaleNumber:    "V20250042",
		UserName:      "Last year",
		Total:         decimal.NewFromInt(1),
		PaymentMethod: enums.PaymentMethodCash,
		Status:        enums.SaleStatusPending,
	}).Error)

	first, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", Items: []ItemInput{line(p, 1)}})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", Items: []ItemInput{line(p, 1)}})
	require.NoError(t, err)
	assert.Equal(t, "V20260001", first.SaleNumber)
	assert.Equal(t, "V20260002", second.SaleNumber)
}

func TestCreateInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	plenty := f.product(t, "Backpack", "30.00", 10)
	scarce := f.product(t, "Belt", "12.00", 1)

	_, err := f.svc.Create(context.Background(), CreateInput{
		UserName: "Greedy",
		Items:    []ItemInput{line(plenty, 2), line(scarce, 2)},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	shortages, ok := pkgerrors.As(err).Details().([]StockShortage)
	require.True(t, ok)
	require.Len(t, shortages, 1)
	assert.Equal(t, "Belt", shortages[0].ProductName)
	assert.Equal(t, 1, shortages[0].Available)

	assert.Equal(t, 10, f.stock(t, plenty.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID))
	var count int64
	require.NoError(t, f.conn.Model(&models.Sale{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.events(t, enums.EventSaleCreated))
}

func TestCreateUnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInput{
		UserName: "Nobody",
		Items:    []ItemInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInput{
		UserName:      "A",
		UserEmail:     strPtr("bad"),
		Items:         []ItemInput{{Quantity: 0, Price: decimal.NewFromInt(-1)}},
		PaymentMethod: "bitcoin",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	paths := map[string]bool{}
	for _, fe := range pkgerrors.As(err).Details().([]pkgerrors.FieldError) {
		paths[fe.Path] = true
	}
	for _, want := range []string{"user_name", "user_email", "items[0].product_id", "items[0].quantity", "items[0].price", "payment_method"} {
		assert.True(t, paths[want], "missing %s in %v", want, paths)
	}

	_, err = f.svc.Create(context.Background(), CreateInput{UserName: "Empty"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPlaceOrderIsPendingAndCatalogPriced(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Shopper", "25.00", 4)

	order, err := f.svc.PlaceOrder(context.Background(), CreateInput{
		UserName:  "Customer",
		UserEmail: strPtr("Buyer@Example.com"),
		Status:    "completed",
		Items:     []ItemInput{{ProductID: p.ID, Quantity: 2, Price: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusPending, order.Status)
	assert.Equal(t, "50", order.Total.String())
	require.NotNil(t, order.UserEmail)
	assert.Equal(t, "buyer@example.com", *order.UserEmail)
	assert.Equal(t, 4, f.stock(t, p.ID), "pending orders hold no stock")

	_, err = f.svc.PlaceOrder(context.Background(), CreateInput{
		UserName: "Customer",
		Items:    []ItemInput{line(p, 5)},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "orders above stock are refused")
}

func TestCompletingPendingSaleDecrementsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Duffel", "40.00", 8)

	sale, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", Status: "pending", Items: []ItemInput{line(p, 3)}})
	require.NoError(t, err)
	assert.Equal(t, 8, f.stock(t, p.ID))

	updated, err := f.svc.Update(ctx, sale.ID, UpdateInput{Status: strPtr("completed")})
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusCompleted, updated.Status)
	assert.Equal(t, 5, f.stock(t, p.ID))

	changed := f.events(t, enums.EventSaleStatusChanged)
	require.Len(t, changed, 1)
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(changed[0].Payload, &envelope))
	var data payloads.SaleStatusChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, enums.SaleStatusPending, data.PreviousStatus)
	assert.True(t, data.StockApplied)
	assert.Len(t, f.events(t, enums.EventProductStockLow), 1)
}

func TestCancellingCompletedSaleRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Pouch", "5.00", 6)

	sale, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", Items: []ItemInput{line(p, 4)}})
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, p.ID))

	_, err = f.svc.Update(ctx, sale.ID, UpdateInput{Status: strPtr("CANCELLED")})
	require.NoError(t, err)
	assert.Equal(t, 6, f.stock(t, p.ID))

	_, err = f.svc.Update(ctx, sale.ID, UpdateInput{Status: strPtr("pending")})
	require.NoError(t, err)
	assert.Equal(t, 6, f.stock(t, p.ID), "cancelled to pending has no stock effect")
}

func TestCompletingWithoutStockRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "Alpha", "10.00", 5)
	b := f.product(t, "Bravo", "10.00", 5)

	sale, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", Status: "pending", Items: []ItemInput{line(a, 2), line(b, 4)}})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateInput{UserName: "Rush", Items: []ItemInput{line(b, 3)}})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, b.ID))

	_, err = f.svc.Update(ctx, sale.ID, UpdateInput{Status: strPtr("completed"), Notes: strPtr("rush")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	assert.Equal(t, 5, f.stock(t, a.ID), "no partial decrement is visible")
	assert.Equal(t, 2, f.stock(t, b.ID))
	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusPending, got.Status)
	assert.Nil(t, got.Notes)
}

func TestUpdateRequiresAField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Tote", "10.00", 5)
	sale, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", Items: []ItemInput{line(p, 1)}})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, sale.ID, UpdateInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Update(ctx, sale.ID, UpdateInput{PaymentMethod: strPtr("wire")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	updated, err := f.svc.Update(ctx, sale.ID, UpdateInput{PaymentMethod: strPtr("Card"), Notes: strPtr(" gift ")})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentMethodCard, updated.PaymentMethod)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "gift", *updated.Notes)
	assert.Empty(t, f.events(t, enums.EventSaleStatusChanged))

	_, err = f.svc.Update(ctx, uuid.New(), UpdateInput{Notes: strPtr("x")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteCompletedSaleRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Satchel", "60.00", 3)

	sale, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", Items: []ItemInput{line(p, 2)}})
	require.NoError(t, err)
	require.Equal(t, 1, f.stock(t, p.ID))

	require.NoError(t, f.svc.Delete(ctx, sale.ID))
	assert.Equal(t, 3, f.stock(t, p.ID))

	var items int64
	require.NoError(t, f.conn.Model(&models.SaleItem{}).Where("sale_id = ?", sale.ID).Count(&items).Error)
	assert.Zero(t, items)
	assert.Len(t, f.events(t, enums.EventSaleDeleted), 1)

	_, err = f.svc.Get(ctx, sale.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(f.svc.Delete(ctx, sale.ID), pkgerrors.CodeNotFound))
}

func TestDeleteSkipsRemovedProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Discontinued", "10.00", 3)

	sale, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", Items: []ItemInput{line(p, 1)}})
	require.NoError(t, err)
	_, err = f.products.Delete(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, sale.ID))
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Tote", "10.00", 100)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		method := "cash"
		if i%2 == 1 {
			method = "card"
		}
		sale, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", PaymentMethod: method, Items: []ItemInput{line(p, 1)}})
		require.NoError(t, err)
		ids = append(ids, sale.ID)
	}
	old := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.conn.Model(&models.Sale{}).Where("id = ?", ids[0]).Update("created_at", old).Error)

	cards, err := f.svc.List(ctx, Filters{PaymentMethod: enums.PaymentMethodCard}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, cards.Sales, 2)

	day := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	onDay, err := f.svc.List(ctx, Filters{StartDate: &day, EndDate: &day}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, onDay.Sales, 1)
	assert.Equal(t, ids[0], onDay.Sales[0].ID)

	var seen []uuid.UUID
	page := pagination.Params{Limit: 2}
	for {
		res, err := f.svc.List(ctx, Filters{}, page)
		require.NoError(t, err)
		for _, s := range res.Sales {
			seen = append(seen, s.ID)
		}
		if res.NextCursor == "" {
			break
		}
		page.Cursor = res.NextCursor
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, ids[0], seen[4], "oldest sale is last")

	_, err = f.svc.List(ctx, Filters{Status: "shipped"}, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.svc.List(ctx, Filters{}, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListByCustomerEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Tote", "10.00", 10)
	customer := models.User{Name: "Lucia", Email: "lucia@example.com", Role: enums.UserRoleCustomer, Status: enums.UserStatusActive}
	require.NoError(t, f.conn.Create(&customer).Error)

	_, err := f.svc.PlaceOrder(ctx, CreateInput{UserName: "Lucia", UserEmail: strPtr("LUCIA@example.com"), Items: []ItemInput{line(p, 1)}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateInput{UserName: "Lucia", UserID: &customer.ID, Items: []ItemInput{line(p, 1)}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateInput{UserName: "Someone else", Items: []ItemInput{line(p, 1)}})
	require.NoError(t, err)

	orders, err := f.svc.ListByCustomerEmail(ctx, "lucia@example.com")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		require.NotNil(t, o.UserID)
		assert.Equal(t, customer.ID, *o.UserID)
	}

	_, err = f.svc.ListByCustomerEmail(ctx, "ghost@example.com")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.ListByCustomerEmail(ctx, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tote := f.product(t, "Tote", "10.00", 100)
	bag := f.product(t, "Bag", "25.00", 100)

	_, err := f.svc.Create(ctx, CreateInput{UserName: "Ana", Items: []ItemInput{line(tote, 3), line(bag, 1)}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateInput{UserName: "Bea", PaymentMethod: "transfer", Items: []ItemInput{line(bag, 1)}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateInput{UserName: "Pending", Status: "pending", Items: []ItemInput{line(tote, 9)}})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, Range{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalSales)
	assert.Equal(t, "80", stats.TotalRevenue.String())
	assert.Equal(t, int64(5), stats.TotalItems)
	assert.Equal(t, "40", stats.AverageSale.String())
	require.Len(t, stats.TopProducts, 2)
	assert.Equal(t, "Tote", stats.TopProducts[0].ProductName)
	assert.Equal(t, int64(3), stats.TopProducts[0].Quantity)
	assert.Equal(t, "50", stats.TopProducts[1].Revenue.String())
	assert.Equal(t, int64(1), stats.PaymentMethods[enums.PaymentMethodCash].Count)
	assert.Equal(t, "25", stats.PaymentMethods[enums.PaymentMethodTransfer].Total.String())
	assert.Zero(t, stats.PaymentMethods[enums.PaymentMethodCard].Count)

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	empty, err := f.svc.Stats(ctx, Range{End: &past})
	require.NoError(t, err)
	assert.Zero(t, empty.TotalSales)
	assert.True(t, empty.AverageSale.IsZero())
	assert.Len(t, empty.PaymentMethods, 4)
}

func TestExpirePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Tote", "10.00", 10)

	stale, err := f.svc.PlaceOrder(ctx, CreateInput{UserName: "Slow", Items: []ItemInput{line(p, 1)}})
	require.NoError(t, err)
	fresh, err := f.svc.PlaceOrder(ctx, CreateInput{UserName: "Fast", Items: []ItemInput{line(p, 1)}})
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.Sale{}).Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-72*time.Hour)).Error)

	n, err := f.svc.ExpirePending(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusCancelled, got.Status)
	got, err = f.svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusPending, got.Status)
	assert.Equal(t, 10, f.stock(t, p.ID))
	assert.Len(t, f.events(t, enums.EventSaleStatusChanged), 1)
}

func TestCreateRejectsPricesBelowOneCent(t *testing.T) {
	f := newFixture(t)
	tote := f.product(t, "Tote", "20.00", 10)

	item := line(tote, 1)
	item.Price = decimal.RequireFromString("0.004")
	_, err := f.svc.Create(context.Background(), CreateInput{UserName: "Walk-in", Items: []ItemInput{item}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	details, ok := pkgerrors.As(err).Details().([]pkgerrors.FieldError)
	require.True(t, ok)
	assert.Equal(t, "items[0].price", details[0].Path)

	assert.Equal(t, 10, f.stock(t, tote.ID))
	assert.Empty(t, f.events(t, enums.EventSaleCreated))
}

func TestPlaceOrderRejectsSubCentCatalogPrice(t *testing.T) {
	f := newFixture(t)
	penny := f.product(t, "Sample sachet", "0.001", 4)

	_, err := f.svc.PlaceOrder(context.Background(), CreateInput{
		UserName:  "Ana Ruiz",
		UserEmail: strPtr("ana@example.com"),
		Items:     []ItemInput{line(penny, 2)},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	var count int64
	require.NoError(t, f.conn.Model(&models.Sale{}).Count(&count).Error)
	assert.Zero(t, count)
}
