// Package registry is the catalog of outbox event types: which aggregate
// emits each one, which topic carries it and which payload struct its data
// decodes into. The publisher and the analytics consumer share it.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// ErrUnknownEvent is returned for event types missing from the catalog.
var ErrUnknownEvent = errors.New("unknown event type")

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

// ResolvedEvent is an outbox row checked against its descriptor.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// describe binds an event type to payload type T.
func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(data json.RawMessage) (any, error) {
			v := new(T)
			if err := json.Unmarshal(data, v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// NewEventRegistry routes every event to the sales topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.SalesTopic
	if topic == "" {
		return nil, errors.New("sales topic is required")
	}
	descriptors := []EventDescriptor{
		describe[payloads.SaleCreatedEvent](enums.EventSaleCreated, enums.AggregateSale, topic),
		describe[payloads.SaleStatusChangedEvent](enums.EventSaleStatusChanged, enums.AggregateSale, topic),
		describe[payloads.SaleDeletedEvent](enums.EventSaleDeleted, enums.AggregateSale, topic),
		describe[payloads.ProductStockLowEvent](enums.EventProductStockLow, enums.AggregateProduct, topic),
	}
	r := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		r.byType[d.EventType] = d
	}
	return r, nil
}

func (r *EventRegistry) Lookup(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	d, ok := r.byType[eventType]
	return d, ok
}

// DecodePayload decodes envelope data into the event's payload struct and
// returns a pointer to it. Empty and JSON null data are rejected.
func (r *EventRegistry) DecodePayload(eventType enums.OutboxEventType, data json.RawMessage) (any, error) {
	d, ok := r.byType[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%s: empty payload", eventType)
	}
	payload, err := d.decode(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return payload, nil
}

// Resolve checks a stored row before it is published. Every failure is
// NonRetryableError since the row itself is malformed.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.byType[row.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("%w: %s", ErrUnknownEvent, row.EventType))
	case d.AggregateType != row.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("%s belongs to %s, row says %s", row.EventType, d.AggregateType, row.AggregateType))
	case row.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	payload, err := r.DecodePayload(row.EventType, env.Data)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}
