package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type errorReply struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorReply {
	t.Helper()
	var body errorReply
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestSuccessEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCreated(rec, map[string]string{"id": "abc"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"abc"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WritePage(rec, []string{"a", "b"}, 2, "next")
	var page struct {
		Data []string       `json:"data"`
		Meta types.PageMeta `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, []string{"a", "b"}, page.Data)
	assert.Equal(t, types.PageMeta{NextCursor: "next", Count: 2}, page.Meta)

	rec = httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestWriteMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteMethodNotAllowed(rec)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, rec).Error.Code)
}

func TestWriteError(t *testing.T) {
	tests := map[string]struct {
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		wantDetails bool
	}{
		"validation keeps details": {
			err:         pkgerrors.Validation([]pkgerrors.FieldError{{Path: "name", Message: "is required"}}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "validation failed",
			wantDetails: true,
		},
		"not found hides details": {
			err:     pkgerrors.NotFound("sale").WithDetails(map[string]any{"id": "x"}),
			status:  http.StatusNotFound,
			code:    pkgerrors.CodeNotFound,
			message: "sale not found",
		},
		"plain error is internal": {
			err:     errors.New("pq: connection refused"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		"dependency uses public message": {
			err:     pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial"), "redis offline at 10.0.0.3"),
			status:  http.StatusServiceUnavailable,
			code:    pkgerrors.CodeDependency,
			message: "dependency unavailable",
		},
		"nil error": {
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, string(tc.code), body.Error.Code)
			assert.Equal(t, tc.message, body.Error.Message)
			if tc.wantDetails {
				assert.NotEmpty(t, body.Error.Details)
			} else {
				assert.Empty(t, body.Error.Details)
			}
		})
	}
}
