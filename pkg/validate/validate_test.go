package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type line struct {
	Quantity int             `json:"quantity" validate:"gt=0"`
	Price    decimal.Decimal `json:"price" validate:"gt=0"`
}

type order struct {
	Name  string `json:"user_name" validate:"required,min=2"`
	Email string `json:"user_email" validate:"omitempty,email"`
	Items []line `json:"items" validate:"required,min=1,dive"`
}

func TestStructReportsJSONPaths(t *testing.T) {
	fields := Struct(order{
		Name:  "A",
		Email: "nope",
		Items: []line{{Quantity: 0, Price: decimal.NewFromInt(-1)}},
	})

	byPath := map[string]string{}
	for _, f := range fields {
		byPath[f.Path] = f.Message
	}
	require.Equal(t, "must be at least 2 characters", byPath["user_name"])
	require.Equal(t, "must be a valid email", byPath["user_email"])
	require.Equal(t, "must be greater than 0", byPath["items[0].quantity"])
	require.Equal(t, "must be greater than 0", byPath["items[0].price"])
}

func TestStructValid(t *testing.T) {
	fields := Struct(order{
		Name:  "Ana",
		Items: []line{{Quantity: 1, Price: decimal.RequireFromString("9.99")}},
	})
	require.Empty(t, fields)
}

func TestStructAtPrefixesPaths(t *testing.T) {
	fields := StructAt("items[3]", line{Quantity: 1})
	require.Len(t, fields, 1)
	require.Equal(t, "items[3].price", fields[0].Path)
}

func TestErrorsWrapsValidation(t *testing.T) {
	require.NoError(t, Errors(nil))

	err := Errors([]pkgerrors.FieldError{{Path: "name", Message: "is required"}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestVar(t *testing.T) {
	require.Empty(t, Var("email", "a@b.co", "email"))
	fields := Var("email", "bad", "required,email")
	require.Len(t, fields, 1)
	require.Equal(t, "email", fields[0].Path)
}
