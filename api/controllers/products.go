package controllers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	productsvc "github.com/angelmondragon/storefront-backend/internal/products"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// multipartOverhead leaves room for the text fields next to the image part.
const multipartOverhead = 1 << 20

// ProductList serves the catalog, filtered by category, search and in_stock.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		q := r.URL.Query()
		params := productsvc.ListParams{
			Category: strings.TrimSpace(q.Get("category")),
			Search:   strings.TrimSpace(q.Get("search")),
			InStock:  validators.ParseQueryBool(r, "in_stock"),
		}
		list, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductCreate accepts either a multipart form with an optional image part
// or a JSON body.
func ProductCreate(svc productsvc.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		input, image, cleanup, err := decodeProductRequest(w, r, maxUploadBytes)
		defer cleanup()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), input, image)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, product)
	}
}

type bulkProductsRequest struct {
	Products []productsvc.ProductInput `json:"products"`
}

// ProductCreateBulk inserts a JSON list of products in one transaction.
func ProductCreateBulk(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var body bulkProductsRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.CreateBulk(r.Context(), body.Products)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, created)
	}
}

// ProductUpdate replaces every writable field; the image is kept unless a
// new one is uploaded.
func ProductUpdate(svc productsvc.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, image, cleanup, err := decodeProductRequest(w, r, maxUploadBytes)
		defer cleanup()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), id, input, image)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func decodeProductRequest(w http.ResponseWriter, r *http.Request, maxUploadBytes int64) (productsvc.ProductInput, *productsvc.ImageUpload, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var input productsvc.ProductInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			return input, nil, noop, err
		}
		return input, nil, noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return productsvc.ProductInput{}, nil, noop, pkgerrors.Validation([]pkgerrors.FieldError{{
				Path:    "image",
				Message: "exceeds the maximum upload size",
			}})
		}
		return productsvc.ProductInput{}, nil, noop, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	input, fields := productFromForm(r)
	if len(fields) > 0 {
		return input, nil, cleanup, pkgerrors.Validation(fields)
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return input, nil, cleanup, nil
	case err != nil:
		return input, nil, cleanup, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid image upload")
	}
	prev := cleanup
	cleanup = func() {
		_ = file.Close()
		prev()
	}
	return input, &productsvc.ImageUpload{Filename: header.Filename, Content: file}, cleanup, nil
}

// flatCharacteristicKeys may be sent as individual form fields instead of a
// JSON encoded characteristics field.
var flatCharacteristicKeys = []string{
	types.CharacteristicBrand,
	types.CharacteristicColor,
	types.CharacteristicWidth,
	types.CharacteristicHeight,
	types.CharacteristicGender,
	types.CharacteristicType,
}

func productFromForm(r *http.Request) (productsvc.ProductInput, []pkgerrors.FieldError) {
	var fields []pkgerrors.FieldError
	input := productsvc.ProductInput{
		Name:            validators.CleanText(r.FormValue("name"), 200),
		Category:        validators.CleanText(r.FormValue("category"), 100),
		Characteristics: types.Characteristics{},
	}

	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			fields = append(fields, pkgerrors.FieldError{Path: "price", Message: "must be a number"})
		} else {
			input.Price = price
		}
	}

	if raw := strings.TrimSpace(r.FormValue("stock")); raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil {
			fields = append(fields, pkgerrors.FieldError{Path: "stock", Message: "must be an integer"})
		} else {
			input.Stock = &stock
		}
	}

	if raw := strings.TrimSpace(r.FormValue("characteristics")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.Characteristics); err != nil {
			fields = append(fields, pkgerrors.FieldError{Path: "characteristics", Message: "must be a JSON object of strings"})
		}
		if input.Characteristics == nil {
			input.Characteristics = types.Characteristics{}
		}
	}
	for _, key := range flatCharacteristicKeys {
		if v := validators.CleanText(r.FormValue(key), 200); v != "" {
			input.Characteristics[key] = v
		}
	}
	return input, fields
}
