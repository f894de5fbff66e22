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

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type recordingUsers struct {
	users.Service
	filters  users.Filters
	register *users.CreateUserInput
	update   *users.UpdateUserInput
}

func (s *recordingUsers) List(_ context.Context, filters users.Filters) ([]users.UserDTO, error) {
	s.filters = filters
	return []users.UserDTO{}, nil
}

func (s *recordingUsers) Register(_ context.Context, input users.CreateUserInput) (*users.UserDTO, error) {
	s.register = &input
	return &users.UserDTO{ID: uuid.New(), Email: input.Email}, nil
}

func (s *recordingUsers) Update(_ context.Context, id uuid.UUID, input users.UpdateUserInput) (*users.UserDTO, error) {
	s.update = &input
	return &users.UserDTO{ID: id}, nil
}

func usersRouter(svc users.Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/owner/users", UserList(svc, nil))
	r.Put("/owner/users/{userId}", UserUpdate(svc, nil))
	r.Post("/api/register", Register(svc, nil))
	return r
}

func TestUserListFilters(t *testing.T) {
	svc := &recordingUsers{}
	resp := httptest.NewRecorder()
	usersRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/owner/users?name=ana&role=ADMIN&status=inactive", nil))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, "ana", svc.filters.Name)
	require.Equal(t, enums.UserRoleAdmin, svc.filters.Role)
	require.Equal(t, enums.UserStatusInactive, svc.filters.Status)

	resp = httptest.NewRecorder()
	usersRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/owner/users?role=root", nil))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), `"role"`)
}

func TestUserUpdateKeepsOmittedFields(t *testing.T) {
	svc := &recordingUsers{}
	resp := httptest.NewRecorder()
	usersRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPut, "/owner/users/"+uuid.NewString(), strings.NewReader(`{"status":"inactive"}`)))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, svc.update)
	require.Nil(t, svc.update.Name)
	require.NotNil(t, svc.update.Status)
	require.Equal(t, "inactive", *svc.update.Status)
}

func TestRegisterCreatesCustomer(t *testing.T) {
	svc := &recordingUsers{}
	resp := httptest.NewRecorder()
	usersRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"name":"Ana","email":"ana@example.com"}`)))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.NotNil(t, svc.register)
	require.Equal(t, "ana@example.com", svc.register.Email)
}

func TestRegisterRejectsMalformedBody(t *testing.T) {
	svc := &recordingUsers{}
	resp := httptest.NewRecorder()
	usersRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(`{"name":42}`)))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), `"name"`)
	require.Nil(t, svc.register)
}
