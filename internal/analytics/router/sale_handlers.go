package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// factHandler turns payload T into one sale fact row. fill copies the
// event-specific columns; the envelope columns are shared.
func factHandler[T any](writer Writer, logg *logger.Logger, fill func(*types.SaleFactRow, *T) error) Handler {
	return HandlerFunc(func(ctx context.Context, envelope types.Envelope, payload any) error {
		event, ok := payload.(*T)
		if !ok {
			return fmt.Errorf("%w: %s carries %T", ErrMalformedPayload, envelope.EventType, payload)
		}
		raw, err := nullJSON(event)
		if err != nil {
			return err
		}
		row := types.SaleFactRow{
			EventID:    envelope.EventID,
			EventType:  envelope.EventType.String(),
			OccurredAt: envelope.OccurredAt.UTC(),
			ActorRole:  nullString(envelope.ActorRole),
			Payload:    raw,
		}
		if err := fill(&row, event); err != nil {
			return err
		}

		ctx = logg.WithSale(ctx, row.SaleID, row.SaleNumber)
		if err := writer.InsertSaleFact(ctx, row); err != nil {
			logg.Error(ctx, "sale fact insert failed", err)
			return err
		}
		logg.Debug(logg.WithField(ctx, "status", row.Status), "sale fact buffered")
		return nil
	})
}

func fillSaleCreated(row *types.SaleFactRow, e *payloads.SaleCreatedEvent) error {
	row.SaleID = e.SaleID.String()
	row.SaleNumber = e.SaleNumber
	row.Status = e.Status.String()
	row.PaymentMethod = nullString(e.PaymentMethod.String())
	row.Source = nullString(e.Source)
	if e.UserEmail != nil {
		row.UserEmail = nullString(*e.UserEmail)
	}
	row.Total = e.Total.Rat()
	row.ItemCount = int64(len(e.Items))
	for _, line := range e.Items {
		row.Quantity += int64(line.Quantity)
	}
	row.StockApplied = e.Status.HoldsStock()

	items, err := nullJSON(e.Items)
	row.Items = items
	return err
}

func fillSaleStatusChanged(row *types.SaleFactRow, e *payloads.SaleStatusChangedEvent) error {
	row.SaleID = e.SaleID.String()
	row.SaleNumber = e.SaleNumber
	row.Status = e.Status.String()
	row.PreviousStatus = nullString(e.PreviousStatus.String())
	row.PaymentMethod = nullString(e.PaymentMethod.String())
	row.Total = e.Total.Rat()
	row.StockApplied = e.StockApplied
	row.StockRestored = e.StockRestored
	return nil
}

func fillSaleDeleted(row *types.SaleFactRow, e *payloads.SaleDeletedEvent) error {
	row.SaleID = e.SaleID.String()
	row.SaleNumber = e.SaleNumber
	row.Status = e.Status.String()
	row.Total = e.Total.Rat()
	row.StockRestored = e.StockRestored
	return nil
}

func nullString(value string) cbigquery.NullString {
	value = strings.TrimSpace(value)
	return cbigquery.NullString{StringVal: value, Valid: value != ""}
}

func nullJSON(value any) (cbigquery.NullJSON, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return cbigquery.NullJSON{}, fmt.Errorf("marshal json column: %w", err)
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
