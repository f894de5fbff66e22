package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/sales"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type recordingSales struct {
	sales.Service
	actor   *outbox.ActorRef
	placed  *sales.CreateInput
	email   string
	filters sales.Filters
	page    pagination.Params
	rng     sales.Range
}

func (s *recordingSales) PlaceOrder(ctx context.Context, input sales.CreateInput) (*sales.SaleDTO, error) {
	s.actor = outbox.ActorFromContext(ctx)
	s.placed = &input
	return &sales.SaleDTO{ID: uuid.New(), Status: enums.SaleStatusPending}, nil
}

func (s *recordingSales) ListByCustomerEmail(_ context.Context, email string) ([]sales.SaleDTO, error) {
	s.email = email
	return []sales.SaleDTO{}, nil
}

func (s *recordingSales) List(_ context.Context, filters sales.Filters, page pagination.Params) (*sales.ListResult, error) {
	s.filters = filters
	s.page = page
	return &sales.ListResult{Sales: []sales.SaleDTO{{ID: uuid.New()}}, NextCursor: "next"}, nil
}

func (s *recordingSales) Stats(_ context.Context, rng sales.Range) (*sales.Stats, error) {
	s.rng = rng
	return &sales.Stats{}, nil
}

func salesRouter(svc sales.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/orders", OrderPlace(svc, nil))
	r.Get("/api/orders", OrderListByEmail(svc, nil))
	r.Get("/owner/sales", SaleList(svc, nil))
	r.Get("/owner/sales/stats", SaleStats(svc, nil))
	return r
}

func TestOrderPlaceUsesCustomerActor(t *testing.T) {
	svc := &recordingSales{}
	body := `{"user_name":"Ana","user_email":" Ana@Example.com ","items":[{"product_id":"` + uuid.NewString() + `","quantity":2}]}`
	resp := httptest.NewRecorder()
	salesRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.NotNil(t, svc.placed)
	require.Len(t, svc.placed.Items, 1)
	require.NotNil(t, svc.actor)
	require.Equal(t, outbox.ActorCustomer, svc.actor.Role)
	require.Equal(t, "ana@example.com", svc.actor.Email)
	require.Contains(t, resp.Body.String(), `"pending"`)
}

func TestOrderListRequiresEmail(t *testing.T) {
	svc := &recordingSales{}
	resp := httptest.NewRecorder()
	salesRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), `"email"`)

	resp = httptest.NewRecorder()
	salesRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/orders?email=ana@example.com", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "ana@example.com", svc.email)
}

func TestSaleListParsesFiltersAndCursor(t *testing.T) {
	svc := &recordingSales{}
	userID := uuid.New()
	url := "/owner/sales?start_date=2024-01-01&end_date=2024-01-31&status=completed&payment_method=card&user_id=" + userID.String() + "&limit=10&cursor=abc"
	resp := httptest.NewRecorder()
	salesRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, url, nil))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, svc.filters.StartDate)
	require.NotNil(t, svc.filters.EndDate)
	require.Equal(t, enums.SaleStatusCompleted, svc.filters.Status)
	require.Equal(t, enums.PaymentMethodCard, svc.filters.PaymentMethod)
	require.Equal(t, userID, *svc.filters.UserID)
	require.Equal(t, 10, svc.page.Limit)
	require.Equal(t, "abc", svc.page.Cursor)
	require.Contains(t, resp.Body.String(), `"next_cursor":"next"`)
}

func TestSaleListRejectsBadFilters(t *testing.T) {
	svc := &recordingSales{}
	resp := httptest.NewRecorder()
	salesRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/owner/sales?start_date=yesterday&status=lost", nil))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), `"start_date"`)
	require.Contains(t, resp.Body.String(), `"status"`)
}

func TestSaleStatsRange(t *testing.T) {
	svc := &recordingSales{}
	resp := httptest.NewRecorder()
	salesRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/owner/sales/stats?start_date=2024-02-01", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.rng.Start)
	require.Nil(t, svc.rng.End)
}
