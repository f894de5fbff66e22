package types

import (
	"math/big"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// SaleFactRow mirrors the sale_events BigQuery schema. One row is written
// per sale lifecycle event.
type SaleFactRow struct {
	EventID        string               `bigquery:"event_id"`
	EventType      string               `bigquery:"event_type"`
	OccurredAt     time.Time            `bigquery:"occurred_at"`
	SaleID         string               `bigquery:"sale_id"`
	SaleNumber     string               `bigquery:"sale_number"`
	Status         string               `bigquery:"status"`
	PreviousStatus cbigquery.NullString `bigquery:"previous_status"`
	PaymentMethod  cbigquery.NullString `bigquery:"payment_method"`
	Source         cbigquery.NullString `bigquery:"source"`
	UserEmail      cbigquery.NullString `bigquery:"user_email"`
	Total          *big.Rat             `bigquery:"total"`
	ItemCount      int64                `bigquery:"item_count"`
	Quantity       int64                `bigquery:"quantity"`
	StockApplied   bool                 `bigquery:"stock_applied"`
	StockRestored  bool                 `bigquery:"stock_restored"`
	ActorRole      cbigquery.NullString `bigquery:"actor_role"`
	Items          cbigquery.NullJSON   `bigquery:"items"`
	Payload        cbigquery.NullJSON   `bigquery:"payload"`
}
