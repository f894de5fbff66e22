package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateSale    OutboxAggregateType = "sale"
	AggregateProduct OutboxAggregateType = "product"
)

// OutboxEventType identifies the domain event carried by an outbox row.
// The value doubles as the Pub/Sub event_type attribute.
type OutboxEventType string

const (
	EventSaleCreated       OutboxEventType = "sale_created"
	EventSaleStatusChanged OutboxEventType = "sale_status_changed"
	EventSaleDeleted       OutboxEventType = "sale_deleted"
	EventProductStockLow   OutboxEventType = "product_stock_low"
)

// OutboxDLQErrorReason records why a row was moved to the dead letter table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var (
	validAggregateTypes = []OutboxAggregateType{AggregateSale, AggregateProduct}

	validOutboxEventTypes = []OutboxEventType{
		EventSaleCreated,
		EventSaleStatusChanged,
		EventSaleDeleted,
		EventProductStockLow,
	}

	validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
		OutboxDLQReasonMaxAttempts,
		OutboxDLQReasonNonRetryable,
	}
)

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(validAggregateTypes, a) }

func (a OutboxAggregateType) String() string { return string(a) }

func (e OutboxEventType) IsValid() bool { return slices.Contains(validOutboxEventTypes, e) }

func (e OutboxEventType) String() string { return string(e) }

// IsSaleEvent reports whether the event describes a sale aggregate.
func (e OutboxEventType) IsSaleEvent() bool {
	switch e {
	case EventSaleCreated, EventSaleStatusChanged, EventSaleDeleted:
		return true
	}
	return false
}

func (r OutboxDLQErrorReason) IsValid() bool {
	return slices.Contains(validOutboxDLQErrorReasons, r)
}

// ParseOutboxAggregateType converts a stored or transported value.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseKnown(value, validAggregateTypes, "aggregate type")
}

// ParseOutboxEventType converts a stored or transported value.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseKnown(value, validOutboxEventTypes, "event type")
}

// parseKnown matches value exactly; wire values are never normalized.
func parseKnown[T ~string](value string, valid []T, kind string) (T, error) {
	candidate := T(value)
	if slices.Contains(valid, candidate) {
		return candidate, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
