package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const salesTopic = "sales-topic"

type memOutbox struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	fetchErr  error
}

func (m *memOutbox) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if len(m.rows) > limit {
		return m.rows[:limit], nil
	}
	return m.rows, nil
}

func (m *memOutbox) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memOutbox) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memOutbox) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	m.terminal = append(m.terminal, id)
	return nil
}

type memDLQ struct{ entries []models.OutboxDLQ }

func (m *memDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	m.entries = append(m.entries, entry)
	return nil
}

type noTx struct{ pingErr error }

func (n noTx) Ping(context.Context) error { return n.pingErr }

func (noTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type okBroker struct{}

func (okBroker) Ping(context.Context) error { return nil }

type result struct{ err error }

func (r result) Get(context.Context) (string, error) { return "msg-id", r.err }

// recordingPublisher fails the messages whose event_id is listed in failWith.
type recordingPublisher struct {
	sent     []*gcppubsub.Message
	failWith map[string]error
	stopped  int
}

func (p *recordingPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.sent = append(p.sent, msg)
	return result{err: p.failWith[msg.Attributes["event_id"]]}
}

func (p *recordingPublisher) Stop() { p.stopped++ }

// envelopeResolver decodes the stored envelope instead of a full registry
// lookup and routes everything to salesTopic.
type envelopeResolver struct{ err error }

func (r envelopeResolver) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{EventType: row.EventType, AggregateType: row.AggregateType, Topic: salesTopic},
		Envelope:   env,
		Payload:    &payloads.SaleCreatedEvent{},
	}, nil
}

type harness struct {
	svc    *Service
	outbox *memOutbox
	dlq    *memDLQ
	pub    *recordingPublisher
	opened int
}

func newHarness(t *testing.T, cfg config.OutboxConfig, resolver eventResolver, rows ...models.OutboxEvent) *harness {
	t.Helper()
	h := &harness{
		outbox: &memOutbox{rows: rows},
		dlq:    &memDLQ{},
		pub:    &recordingPublisher{failWith: map[string]error{}},
	}
	topics := newTopicPublishers(func(topic string) publisher {
		if topic != salesTopic {
			return nil
		}
		h.opened++
		return h.pub
	})
	svc, err := NewService(ServiceParams{
		Outbox:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         noTx{},
		Broker:     okBroker{},
		Topics:     topics,
		Repository: h.outbox,
		DLQ:        h.dlq,
		Registry:   resolver,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func saleRow(t *testing.T, eventID string, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Actor:      outbox.OwnerActor("owner@example.com", "sess-1"),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSaleCreated,
		AggregateType: enums.AggregateSale,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC),
	}
}

func TestDrainOnceSettlesEachRowIndependently(t *testing.T) {
	bad := saleRow(t, "evt-bad", 0)
	good := saleRow(t, "evt-good", 0)
	h := newHarness(t, config.OutboxConfig{MaxAttempts: 5}, envelopeResolver{}, bad, good)
	h.pub.failWith["evt-bad"] = errors.New("unavailable")

	stats, err := h.svc.drainOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, batchStats{claimed: 2, published: 1, retried: 1}, stats)
	assert.Equal(t, []uuid.UUID{bad.ID}, h.outbox.failed)
	assert.Equal(t, []uuid.UUID{good.ID}, h.outbox.published)
	assert.Empty(t, h.dlq.entries)
	assert.Equal(t, 1, h.opened, "publisher is opened once per topic")
}

func TestDrainOnceMessageShape(t *testing.T) {
	row := saleRow(t, "evt-1", 0)
	h := newHarness(t, config.OutboxConfig{}, envelopeResolver{}, row)

	_, err := h.svc.drainOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, h.pub.sent, 1)

	msg := h.pub.sent[0]
	assert.JSONEq(t, string(row.Payload), string(msg.Data))
	assert.Equal(t, map[string]string{
		"event_id":       "evt-1",
		"event_type":     "sale_created",
		"event_version":  "1",
		"aggregate_type": "sale",
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     "2026-03-01T10:00:01Z",
		"actor_role":     outbox.ActorOwner,
	}, msg.Attributes)
}

func TestDrainOnceDeadLettersUnresolvableRows(t *testing.T) {
	row := saleRow(t, "evt-x", 2)
	resolver := envelopeResolver{err: registry.NewNonRetryableError(errors.New("unsupported event type"))}
	h := newHarness(t, config.OutboxConfig{}, resolver, row)

	stats, err := h.svc.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.dead)
	assert.Empty(t, h.pub.sent)

	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, 2, entry.AttemptCount)
	assert.JSONEq(t, string(row.Payload), string(entry.Payload))
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "unsupported event type")
	assert.Equal(t, []uuid.UUID{row.ID}, h.outbox.terminal)
}

func TestDrainOnceDeadLettersAtMaxAttempts(t *testing.T) {
	row := saleRow(t, "evt-tired", 1)
	h := newHarness(t, config.OutboxConfig{MaxAttempts: 2}, envelopeResolver{}, row)
	h.pub.failWith["evt-tired"] = errors.New("deadline exceeded")

	stats, err := h.svc.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.dead)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, h.dlq.entries[0].ErrorReason)
	assert.Empty(t, h.outbox.failed)
}

func TestDrainOnceUnknownTopicIsTerminal(t *testing.T) {
	row := saleRow(t, "evt-1", 0)
	h := newHarness(t, config.OutboxConfig{}, envelopeResolver{}, row)
	h.svc.topics = newTopicPublishers(func(string) publisher { return nil })

	stats, err := h.svc.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.dead)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, h.dlq.entries[0].ErrorReason)
}

func TestDrainOnceRespectsBatchSize(t *testing.T) {
	rows := []models.OutboxEvent{saleRow(t, "a", 0), saleRow(t, "b", 0), saleRow(t, "c", 0)}
	h := newHarness(t, config.OutboxConfig{BatchSize: 2}, envelopeResolver{}, rows...)

	stats, err := h.svc.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.claimed)
	assert.Len(t, h.pub.sent, 2)
}

func TestRunFailsFastOnPing(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{}, envelopeResolver{})
	h.svc.db = noTx{pingErr: errors.New("connection refused")}

	err := h.svc.Run(context.Background())
	require.ErrorContains(t, err, "database ping")
}

func TestRunStopsPublishersOnCancel(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{PollIntervalMS: 5}, envelopeResolver{}, saleRow(t, "a", 0))

	ctx, cancel := context.WithCancel(context.Background())
	// one pass opens the publisher, then the empty queue lets Run wait
	_, err := h.svc.drainOnce(ctx)
	require.NoError(t, err)
	h.outbox.rows = nil
	cancel()

	require.ErrorIs(t, h.svc.Run(ctx), context.Canceled)
	assert.Equal(t, 1, h.pub.stopped)
	assert.Zero(t, h.svc.topics.Len())
}

func TestNewServiceDefaults(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{}, envelopeResolver{})
	assert.Equal(t, defaultBatchSize, h.svc.batchSize)
	assert.Equal(t, defaultMaxAttempts, h.svc.maxAttempts)
	assert.Equal(t, defaultPollEvery, h.svc.pollEvery)

	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestPollBackoff(t *testing.T) {
	b := newPollBackoff(time.Second, 4*time.Second)
	waits := []time.Duration{b.fail(), b.fail(), b.fail()}
	for i, want := range []time.Duration{2 * time.Second, 4 * time.Second, 4 * time.Second} {
		assert.GreaterOrEqual(t, waits[i], want)
		assert.Less(t, waits[i], want+jitterWindow)
	}
	b.reset()
	assert.Less(t, b.idle(), time.Second+jitterWindow)
}
