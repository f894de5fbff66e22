package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDead
)

// delivery is what happened to one outbox row during a batch.
type delivery struct {
	row      models.OutboxEvent
	resolved *registry.ResolvedEvent
	outcome  outcome
	reason   enums.OutboxDLQErrorReason
	err      error
}

func (s *Service) deliver(ctx context.Context, row models.OutboxEvent) delivery {
	d := delivery{row: row}
	resolved, err := s.registry.Resolve(row)
	if err != nil {
		return d.dead(enums.OutboxDLQReasonNonRetryable, err)
	}
	d.resolved = resolved

	err = s.publish(ctx, row, resolved)
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		d.outcome = outcomePublished
		return d
	case errors.As(err, &nonRetryable):
		return d.dead(enums.OutboxDLQReasonNonRetryable, err)
	case row.AttemptCount+1 >= s.maxAttempts:
		return d.dead(enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err))
	default:
		d.outcome = outcomeRetry
		d.err = err
		return d
	}
}

func (d delivery) dead(reason enums.OutboxDLQErrorReason, err error) delivery {
	d.outcome = outcomeDead
	d.reason = reason
	d.err = err
	return d
}

func (s *Service) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.topics.For(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       row.Payload,
		Attributes: messageAttributes(row, resolved.Envelope),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("topic %q returned no publish result", topic))
	}
	_, err := result.Get(ctx)
	return err
}

// settle writes the delivery outcome back to the claimed row.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, d delivery) error {
	ctx = s.logg.WithFields(ctx, d.logFields())
	switch d.outcome {
	case outcomePublished:
		if err := s.repo.MarkPublishedTx(tx, d.row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", d.row.ID, err)
		}
		s.logg.Debug(ctx, "outbox event published")
	case outcomeRetry:
		s.logg.Warn(s.logg.WithField(ctx, "error", d.err.Error()), "outbox publish failed; will retry")
		if err := s.repo.MarkFailedTx(tx, d.row.ID, d.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", d.row.ID, err)
		}
	case outcomeDead:
		s.logg.Warn(s.logg.WithField(ctx, "error", d.err.Error()), "outbox event dead-lettered")
		msg := d.err.Error()
		entry := models.OutboxDLQ{
			EventID:       d.row.ID,
			EventType:     d.row.EventType,
			AggregateType: d.row.AggregateType,
			AggregateID:   d.row.AggregateID,
			Payload:       d.row.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &msg,
			AttemptCount:  d.row.AttemptCount,
			FailedAt:      s.now().UTC(),
		}
		if err := s.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("dead-letter %s: %w", d.row.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, d.row.ID, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark %s terminal: %w", d.row.ID, err)
		}
	}
	return nil
}

func (d delivery) logFields() logger.Fields {
	fields := logger.Fields{
		"outbox_id":      d.row.ID.String(),
		"event_type":     d.row.EventType,
		"aggregate_type": d.row.AggregateType,
		"aggregate_id":   d.row.AggregateID.String(),
		"attempt_count":  d.row.AttemptCount,
	}
	if d.resolved != nil {
		fields["topic"] = d.resolved.Descriptor.Topic
		fields["event_id"] = d.resolved.Envelope.EventID
	}
	if d.outcome == outcomeDead {
		fields["error_reason"] = d.reason
	}
	return fields
}

// messageAttributes lets subscribers filter and route without decoding the
// body.
func messageAttributes(row models.OutboxEvent, env outbox.PayloadEnvelope) map[string]string {
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     row.EventType.String(),
		"event_version":  strconv.Itoa(env.Version),
		"aggregate_type": row.AggregateType.String(),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if env.Actor != nil && env.Actor.Role != "" {
		attrs["actor_role"] = env.Actor.Role
	}
	return attrs
}
