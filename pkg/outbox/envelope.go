package outbox

import (
	"context"
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Role      string `json:"role"`
}

const (
	ActorOwner    = "owner"
	ActorCustomer = "customer"
	ActorSystem   = "system"
)

// OwnerActor builds the actor reference for an authenticated owner session.
func OwnerActor(email, sessionID string) *ActorRef {
	return &ActorRef{Email: email, SessionID: sessionID, Role: ActorOwner}
}

// CustomerActor builds the actor reference for a storefront order.
func CustomerActor(email string) *ActorRef {
	return &ActorRef{Email: email, Role: ActorCustomer}
}

// SystemActor builds the actor reference for background jobs.
func SystemActor() *ActorRef {
	return &ActorRef{Role: ActorSystem}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

type actorKey struct{}

// WithActor attaches the actor that later Emit calls fall back to.
func WithActor(ctx context.Context, actor *ActorRef) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor, if any.
func ActorFromContext(ctx context.Context) *ActorRef {
	if ctx == nil {
		return nil
	}
	actor, _ := ctx.Value(actorKey{}).(*ActorRef)
	return actor
}
