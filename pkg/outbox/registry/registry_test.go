package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func newRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{SalesTopic: "sales-topic"})
	require.NoError(t, err)
	return reg
}

func envelope(t *testing.T, data string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return raw
}

func TestResolveSaleCreated(t *testing.T) {
	reg := newRegistry(t)
	saleID := uuid.New()
	data, err := json.Marshal(payloads.SaleCreatedEvent{
		SaleID:        saleID,
		SaleNumber:    "V20260001",
		UserName:      "Ana",
		Total:         decimal.RequireFromString("150.00"),
		PaymentMethod: enums.PaymentMethodCash,
		Status:        enums.SaleStatusCompleted,
	})
	require.NoError(t, err)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventSaleCreated,
		AggregateType: enums.AggregateSale,
		AggregateID:   saleID,
		Payload:       envelope(t, string(data)),
	})
	require.NoError(t, err)

	assert.Equal(t, "sales-topic", resolved.Descriptor.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	payload, ok := resolved.Payload.(*payloads.SaleCreatedEvent)
	require.True(t, ok, "got %T", resolved.Payload)
	assert.Equal(t, saleID, payload.SaleID)
	assert.Equal(t, "V20260001", payload.SaleNumber)
	assert.True(t, payload.Total.Equal(decimal.NewFromInt(150)))
}

func TestDecodePayload(t *testing.T) {
	reg := newRegistry(t)

	payload, err := reg.DecodePayload(enums.EventProductStockLow, json.RawMessage(`{"product_name":"Tote","stock":2,"threshold":5}`))
	require.NoError(t, err)
	low := payload.(*payloads.ProductStockLowEvent)
	assert.Equal(t, 2, low.Stock)
	assert.Equal(t, 5, low.Threshold)

	_, err = reg.DecodePayload("sale_refunded", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	for _, data := range []string{"", " null ", `{"sale_id":`} {
		_, err = reg.DecodePayload(enums.EventSaleDeleted, json.RawMessage(data))
		assert.Error(t, err, "data %q", data)
	}
}

func TestResolveRejectsMalformedRows(t *testing.T) {
	reg := newRegistry(t)
	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType: "sale_refunded", AggregateType: enums.AggregateSale,
			AggregateID: uuid.New(), Payload: envelope(t, `{}`),
		},
		"aggregate mismatch": {
			EventType: enums.EventSaleCreated, AggregateType: enums.AggregateProduct,
			AggregateID: uuid.New(), Payload: envelope(t, `{"sale_number":"V20260001"}`),
		},
		"missing aggregate id": {
			EventType: enums.EventSaleDeleted, AggregateType: enums.AggregateSale,
			Payload: envelope(t, `{}`),
		},
		"null data": {
			EventType: enums.EventSaleStatusChanged, AggregateType: enums.AggregateSale,
			AggregateID: uuid.New(), Payload: envelope(t, `null`),
		},
		"broken envelope": {
			EventType: enums.EventSaleDeleted, AggregateType: enums.AggregateSale,
			AggregateID: uuid.New(), Payload: json.RawMessage(`{"version":`),
		},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			require.Error(t, err)
			var nonRetryable NonRetryableError
			assert.True(t, errors.As(err, &nonRetryable), "got %T", err)
		})
	}
}

func TestLookupAndTopicRequired(t *testing.T) {
	reg := newRegistry(t)
	d, ok := reg.Lookup(enums.EventSaleDeleted)
	require.True(t, ok)
	assert.Equal(t, enums.AggregateSale, d.AggregateType)

	_, err := NewEventRegistry(config.PubSubConfig{})
	assert.Error(t, err)
}
