package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/validate"
)

// DecodeJSONBody strictly decodes a request-local payload and runs its
// validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	if err := decode(r, dest, true); err != nil {
		return err
	}
	return validate.Errors(validate.Struct(dest))
}

// DecodeJSON decodes a payload whose validation belongs to the service
// receiving it. Unknown fields are ignored so clients can send back the
// objects they were given.
func DecodeJSON(r *http.Request, dest any) error {
	return decode(r, dest, false)
}

func decode(r *http.Request, dest any, strict bool) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dest); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return pkgerrors.Validation([]pkgerrors.FieldError{{
			Path:    typeErr.Field,
			Message: fmt.Sprintf("must be a %s", typeErr.Type.String()),
		}})
	}
	if errors.Is(err, io.EOF) {
		return pkgerrors.Validation([]pkgerrors.FieldError{{Path: "body", Message: "is required"}})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
		WithDetails([]pkgerrors.FieldError{{Path: "body", Message: err.Error()}})
}
