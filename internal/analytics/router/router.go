package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	// ErrMalformedPayload means redelivery cannot help.
	ErrMalformedPayload = errors.New("malformed analytics payload")
)

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertSaleFact(ctx context.Context, row types.SaleFactRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope, payload any) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	return fn(ctx, envelope, payload)
}

type payloadDecoder interface {
	DecodePayload(enums.OutboxEventType, json.RawMessage) (any, error)
}

// Router decodes each envelope through the event catalog and hands it to the
// handler registered for its type.
type Router struct {
	decoder  payloadDecoder
	handlers map[enums.OutboxEventType]Handler
	logg     *logger.Logger
}

// NewRouter installs the sale fact handlers. overrides replaces the handler
// for an already handled event type; other keys are ignored.
func NewRouter(writer Writer, decoder payloadDecoder, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	switch {
	case writer == nil:
		return nil, errors.New("writer is required")
	case decoder == nil:
		return nil, errors.New("payload decoder is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventSaleCreated:       factHandler(writer, logg, fillSaleCreated),
		enums.EventSaleStatusChanged: factHandler(writer, logg, fillSaleStatusChanged),
		enums.EventSaleDeleted:       factHandler(writer, logg, fillSaleDeleted),
		// stock alerts share the topic but carry no sale facts
		enums.EventProductStockLow: HandlerFunc(func(ctx context.Context, _ types.Envelope, _ any) error {
			logg.Debug(ctx, "analytics event ignored")
			return nil
		}),
	}
	for eventType, h := range overrides {
		if _, ok := handlers[eventType]; ok && h != nil {
			handlers[eventType] = h
		}
	}
	return &Router{decoder: decoder, handlers: handlers, logg: logg}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload, err := r.decoder.DecodePayload(envelope.EventType, envelope.Payload)
	switch {
	case errors.Is(err, registry.ErrUnknownEvent):
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return handler.Handle(ctx, envelope, payload)
}
