package controllers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type recordingProducts struct {
	productsvc.Service
	input   productsvc.ProductInput
	image   []byte
	imgName string
	params  productsvc.ListParams
	err     error
}

func (s *recordingProducts) List(_ context.Context, params productsvc.ListParams) ([]productsvc.ProductDTO, error) {
	s.params = params
	return []productsvc.ProductDTO{}, nil
}

func (s *recordingProducts) Create(_ context.Context, input productsvc.ProductInput, image *productsvc.ImageUpload) (*productsvc.ProductDTO, error) {
	s.input = input
	if image != nil {
		s.imgName = image.Filename
		s.image, _ = io.ReadAll(image.Content)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &productsvc.ProductDTO{ID: uuid.New(), Name: input.Name, Price: input.Price}, nil
}

func (s *recordingProducts) Delete(context.Context, uuid.UUID) error {
	return s.err
}

func productRouter(svc productsvc.Service, maxUpload int64) http.Handler {
	r := chi.NewRouter()
	r.Get("/products", ProductList(svc, nil))
	r.Post("/products", ProductCreate(svc, maxUpload, nil))
	r.Delete("/products/{productId}", ProductDelete(svc, nil))
	return r
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "bag.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestProductCreateMultipart(t *testing.T) {
	svc := &recordingProducts{}
	body, contentType := multipartBody(t, map[string]string{
		"name":            "  Tote  ",
		"price":           "49.90",
		"stock":           "4",
		"category":        "bags",
		"characteristics": `{"brand":"Acme"}`,
		"color":           "black",
	}, []byte("\x89PNG"))

	req := httptest.NewRequest(http.MethodPost, "/products", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	productRouter(svc, 1<<20).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Equal(t, "Tote", svc.input.Name)
	require.True(t, svc.input.Price.Equal(decimal.RequireFromString("49.90")))
	require.NotNil(t, svc.input.Stock)
	require.Equal(t, 4, *svc.input.Stock)
	require.Equal(t, "Acme", svc.input.Characteristics[types.CharacteristicBrand])
	require.Equal(t, "black", svc.input.Characteristics[types.CharacteristicColor])
	require.Equal(t, "bag.png", svc.imgName)
	require.Equal(t, []byte("\x89PNG"), svc.image)
}

func TestProductCreateMultipartRejectsBadNumbers(t *testing.T) {
	svc := &recordingProducts{}
	body, contentType := multipartBody(t, map[string]string{
		"name":  "Tote",
		"price": "cheap",
		"stock": "many",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/products", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	productRouter(svc, 1<<20).ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), `"price"`)
	require.Contains(t, resp.Body.String(), `"stock"`)
}

func TestProductCreateJSON(t *testing.T) {
	svc := &recordingProducts{}
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"name":"Clutch","price":"20","stock":2,"category":"bags"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	productRouter(svc, 1<<20).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.Equal(t, "Clutch", svc.input.Name)
	require.Equal(t, 2, *svc.input.Stock)
}

func TestProductCreatePropagatesServiceError(t *testing.T) {
	svc := &recordingProducts{err: pkgerrors.Validation([]pkgerrors.FieldError{{Path: "name", Message: "is required"}})}
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	productRouter(svc, 1<<20).ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "is required")
}

func TestProductListParsesFilters(t *testing.T) {
	svc := &recordingProducts{}
	req := httptest.NewRequest(http.MethodGet, "/products?category=bags&search=tote&in_stock=true", nil)
	resp := httptest.NewRecorder()
	productRouter(svc, 1<<20).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "bags", svc.params.Category)
	require.Equal(t, "tote", svc.params.Search)
	require.True(t, svc.params.InStock)
}

func TestProductDelete(t *testing.T) {
	svc := &recordingProducts{}
	resp := httptest.NewRecorder()
	productRouter(svc, 1<<20).ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/products/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = httptest.NewRecorder()
	productRouter(svc, 1<<20).ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/products/not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	svc.err = pkgerrors.NotFound("product")
	resp = httptest.NewRecorder()
	productRouter(svc, 1<<20).ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/products/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, resp.Code)
}
