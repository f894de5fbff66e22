// Package responses renders every API reply in the data or error envelope.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Codes whose own message is shown to the client instead of the generic one.
var clientVisible = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:    true,
	pkgerrors.CodeUnauthorized:  true,
	pkgerrors.CodeForbidden:     true,
	pkgerrors.CodeNotFound:      true,
	pkgerrors.CodeConflict:      true,
	pkgerrors.CodeStateConflict: true,
	pkgerrors.CodeIdempotency:   true,
	pkgerrors.CodeRateLimit:     true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	encode(w, status, types.SuccessEnvelope{Data: data})
}

func WriteCreated(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusCreated, data)
}

// WritePage writes one page of a cursor listing.
func WritePage(w http.ResponseWriter, data any, count int, nextCursor string) {
	encode(w, http.StatusOK, types.SuccessEnvelope{
		Data: data,
		Meta: &types.PageMeta{NextCursor: nextCursor, Count: count},
	})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func WriteMethodNotAllowed(w http.ResponseWriter) {
	encode(w, http.StatusMethodNotAllowed, types.ErrorEnvelope{
		Error: types.APIError{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"},
	})
}

// WriteError maps err onto its code's status and public message. Errors
// without a code are reported as INTERNAL_ERROR and their text never leaves
// the process.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	coded := pkgerrors.As(err)
	if coded == nil {
		coded = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(coded.Code())

	body := types.APIError{Code: string(coded.Code()), Message: meta.PublicMessage}
	if clientVisible[coded.Code()] && coded.Message() != "" {
		body.Message = coded.Message()
	}
	if meta.DetailsAllowed {
		body.Details = coded.Details()
	}

	report(ctx, logg, meta.HTTPStatus, err)
	encode(w, meta.HTTPStatus, types.ErrorEnvelope{Error: body})
}

func report(ctx context.Context, logg *logger.Logger, status int, err error) {
	if logg == nil {
		return
	}
	fields := pkgerrors.Inspect(err).LogFields()
	fields["http_status"] = status
	ctx = logg.WithFields(ctx, fields)
	if status < http.StatusInternalServerError {
		logg.Warn(ctx, "request rejected")
		return
	}
	logg.Error(ctx, "request failed", err)
}

func encode(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("encode response")
	}
}
