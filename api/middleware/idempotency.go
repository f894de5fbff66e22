package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	idempotencyHeader = "Idempotency-Key"

	// inFlightTTL bounds how long a reservation outlives a crashed handler.
	inFlightTTL = time.Minute
)

type idempotentRoute struct {
	ttl         time.Duration
	keyRequired bool
}

// Keyed by "METHOD pattern". Orders keep their replay record for a week;
// the key is optional everywhere else.
var idempotentRoutes = map[string]idempotentRoute{
	"POST /api/register": {ttl: 24 * time.Hour},
	"POST /owner/sales":  {ttl: 24 * time.Hour},
	"POST /api/orders":   {ttl: 7 * 24 * time.Hour, keyRequired: true},
}

// IdempotencyStore is the redis surface used to persist replayable responses.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

// storedResponse is either a reservation held while the first request runs
// (InFlight) or the response it produced.
type storedResponse struct {
	InFlight    bool   `json:"in_flight,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// Idempotency replays the first response recorded for an Idempotency-Key.
// The key is reserved before the handler runs, so a concurrent duplicate gets
// 409 instead of executing twice. A repeated key with a different body is
// also rejected with 409.
func Idempotency(store IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := lookupIdempotentRoute(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				if route.keyRequired {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			fingerprint := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(OwnerEmailFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			prior, found, err := loadResponse(ctx, store, key)
			if err == nil && !found {
				reserved, reserveErr := reserve(ctx, store, key, fingerprint)
				switch {
				case reserveErr != nil:
					err = reserveErr
				case reserved:
					capture := &responseCapture{ResponseWriter: w}
					next.ServeHTTP(capture, r)
					settle(context.WithoutCancel(ctx), store, key, route.ttl, capture.snapshot(fingerprint), logg)
					return
				default:
					prior, found, err = loadResponse(ctx, store, key)
				}
			}

			switch {
			case err != nil:
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			case found && prior.Fingerprint != fingerprint:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			case !found || prior.InFlight:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress"))
			default:
				prior.replay(w)
			}
		})
	}
}

func lookupIdempotentRoute(r *http.Request) (idempotentRoute, bool) {
	pattern := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		pattern = rc.RoutePattern()
	}
	// chi leaves a trailing slash on subrouter index routes.
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	route, ok := idempotentRoutes[r.Method+" "+pattern]
	return route, ok
}

func loadResponse(ctx context.Context, store IdempotencyStore, key string) (storedResponse, bool, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return storedResponse{}, false, nil
	}
	if err != nil {
		return storedResponse{}, false, err
	}
	var resp storedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return storedResponse{}, false, err
	}
	return resp, true, nil
}

func reserve(ctx context.Context, store IdempotencyStore, key, fingerprint string) (bool, error) {
	marker, err := json.Marshal(storedResponse{InFlight: true, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), inFlightTTL)
}

// settle replaces the reservation with the captured response. Server errors
// are not kept, so a retry with the same key runs the handler again.
func settle(ctx context.Context, store IdempotencyStore, key string, ttl time.Duration, resp storedResponse, logg *logger.Logger) {
	var err error
	if resp.Status >= http.StatusInternalServerError {
		err = store.Del(ctx, key)
	} else {
		var payload []byte
		if payload, err = json.Marshal(resp); err == nil {
			err = store.Set(ctx, key, string(payload), ttl)
		}
	}
	if err != nil && logg != nil {
		logg.Error(ctx, "settle idempotency record", err)
	}
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) snapshot(fingerprint string) storedResponse {
	status := c.status
	if status == 0 {
		status = http.StatusOK
	}
	return storedResponse{
		Status:      status,
		ContentType: c.Header().Get("Content-Type"),
		Body:        c.body.Bytes(),
		Fingerprint: fingerprint,
	}
}
