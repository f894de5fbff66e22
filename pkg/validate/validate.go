package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "-" {
			return ""
		}
		if tag == "" {
			return f.Name
		}
		return tag
	})
	// decimals compare as floats so gt/gte tags work on money fields.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Struct validates v against its `validate` tags and returns the failures
// as {path, message} pairs. Paths use json names, e.g. items[0].quantity.
func Struct(v any) []pkgerrors.FieldError {
	return StructAt("", v)
}

// StructAt is Struct with every path prefixed, for validating list entries.
func StructAt(prefix string, v any) []pkgerrors.FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []pkgerrors.FieldError{{Path: strings.TrimSuffix(prefix, "."), Message: err.Error()}}
	}
	out := make([]pkgerrors.FieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, pkgerrors.FieldError{
			Path:    joinPath(prefix, fieldPath(fe)),
			Message: Message(fe),
		})
	}
	return out
}

// Var validates a single value against tag.
func Var(path string, value any, tag string) []pkgerrors.FieldError {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return []pkgerrors.FieldError{{Path: path, Message: "is invalid"}}
	}
	return []pkgerrors.FieldError{{Path: path, Message: Message(errs[0])}}
}

// Errors wraps field failures into a VALIDATION_ERROR, or returns nil.
func Errors(fields []pkgerrors.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return pkgerrors.Validation(fields)
}

// Message renders a human readable message for a validator failure.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isStringish(fe.Kind()) {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if isStringish(fe.Kind()) {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid", "uuid4":
		return "must be a valid id"
	}
	return "is invalid"
}

func isStringish(kind reflect.Kind) bool {
	return kind == reflect.String
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	default:
		return prefix + "." + path
	}
}
