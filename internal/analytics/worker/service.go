package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const consumerName = "analytics"

// Handler processes one decoded envelope.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// Service feeds the analytics subscription into the handler. Messages that
// can never succeed are acked and logged; transient failures are nacked so
// Pub/Sub redelivers them.
type Service struct {
	sub     receiver
	handler Handler
	claims  claimer
	logg    *logger.Logger
}

func NewService(sub receiver, handler Handler, claims claimer, logg *logger.Logger) (*Service, error) {
	switch {
	case sub == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case claims == nil:
		return nil, errors.New("idempotency guard is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{sub: sub, handler: handler, claims: claims, logg: logg}, nil
}

// Run blocks until ctx is canceled or the subscription fails.
func (s *Service) Run(ctx context.Context) error {
	return s.sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.consume(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// consume reports whether msg should be acked.
func (s *Service) consume(ctx context.Context, msg *gcppubsub.Message) bool {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decodeMessage(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping undecodable analytics message")
		return true
	}
	ctx = s.logg.WithFields(ctx, logger.Fields{
		"event_id":       env.EventID,
		"event_type":     env.EventType,
		"aggregate_type": env.AggregateType,
		"aggregate_id":   env.AggregateID,
		"occurred_at":    env.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping analytics message with non-uuid event id")
		return true
	}

	first, err := s.claims.Claim(ctx, consumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "idempotency claim failed", err)
		return false
	}
	if !first {
		s.logg.Debug(ctx, "duplicate analytics delivery skipped")
		return true
	}

	err = s.handler.Handle(ctx, env)
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event handled")
		return true
	case errors.Is(err, router.ErrUnsupportedEventType), errors.Is(err, router.ErrMalformedPayload):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping analytics event")
		return true
	default:
		s.logg.Error(ctx, "analytics handler failed", err)
		if relErr := s.claims.Release(ctx, consumerName, eventID); relErr != nil {
			s.logg.Error(ctx, "idempotency release failed", relErr)
		}
		return false
	}
}
