// Package idempotency lets Pub/Sub consumers process each event once even
// though delivery is at-least-once.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type claimStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard records claimed event IDs per consumer in Redis. A claim expires after
// ttl; zero keeps it forever.
type Guard struct {
	store claimStore
	ttl   time.Duration
}

func NewGuard(store claimStore, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Claim reports whether this call is the first to see eventID for consumer.
// A false result means another delivery already claimed it.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
}

// Release drops a claim so a redelivery of eventID is processed again.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

// key is sf:idempotency:consumer:<consumer>:<event_id>.
func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("consumer:"+consumer, eventID.String()), nil
}
