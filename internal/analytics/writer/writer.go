package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/gcp"
)

// Config controls batching and retries for sale fact inserts.
type Config struct {
	SalesTable string
	BatchSize  int
	Retry      RetryPolicy
}

// RetryPolicy bounds the exponential backoff around one insert call.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

// backoff is stateful, so each insert builds its own.
func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.InitialBackoff)
	b = retry.WithCappedDuration(p.MaximumBackoff, b)
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter buffers sale fact rows and streams them into the sales
// table. It is not safe for concurrent use.
type BigQueryWriter struct {
	client    tableInserter
	table     string
	batchSize int
	retry     RetryPolicy
	buffer    []types.SaleFactRow
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriter(client, cfg)
}

func newWriter(client tableInserter, cfg Config) (*BigQueryWriter, error) {
	table := strings.TrimSpace(cfg.SalesTable)
	if table == "" {
		return nil, errors.New("sales table is required")
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: max(cfg.BatchSize, 1),
		retry:     cfg.Retry.withDefaults(),
	}, nil
}

// InsertSaleFact buffers row and flushes once the batch is full.
func (w *BigQueryWriter) InsertSaleFact(ctx context.Context, row types.SaleFactRow) error {
	w.buffer = append(w.buffer, row)
	if len(w.buffer) < w.batchSize {
		return nil
	}
	return w.Flush(ctx)
}

// Flush writes buffered rows. On failure the rows stay buffered.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.buffer))
	for i := range w.buffer {
		rows[i] = &w.buffer[i]
	}

	err := retry.Do(ctx, w.retry.backoff(), func(ctx context.Context) error {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(rows), w.table, err)
	}
	w.buffer = w.buffer[:0]
	return nil
}

// Row-level reasons BigQuery documents as safe to retry. "stopped" marks rows
// rejected only because another row in the request failed.
var transientReasons = map[string]bool{
	"backendError":      true,
	"internalError":     true,
	"rateLimitExceeded": true,
	"timeout":           true,
	"stopped":           true,
}

// transient reports whether every failure inside err is worth retrying.
func transient(err error) bool {
	var putErr cbigquery.PutMultiError
	if errors.As(err, &putErr) {
		if len(putErr) == 0 {
			return false
		}
		for _, row := range putErr {
			if !allTransient(row.Errors) {
				return false
			}
		}
		return true
	}
	var bqErr *cbigquery.Error
	if errors.As(err, &bqErr) {
		return transientReasons[bqErr.Reason]
	}
	return gcp.IsTransient(err)
}

func allTransient(errs cbigquery.MultiError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !transient(e) {
			return false
		}
	}
	return true
}
