package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// decodeMessage builds an envelope from the message body and attributes. The
// body wins for event_id, occurred_at and actor; attributes fill the gaps.
func decodeMessage(msg *gcppubsub.Message) (types.Envelope, error) {
	var body outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		return types.Envelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}
	attr := func(name string) string { return strings.TrimSpace(msg.Attributes[name]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}

	env := types.Envelope{
		EventID:       firstNonEmpty(body.EventID, attr("event_id")),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   attr("aggregate_id"),
		OccurredAt:    body.OccurredAt,
		ActorRole:     attr("actor_role"),
		Payload:       body.Data,
	}
	if env.EventID == "" {
		return types.Envelope{}, errors.New("event_id missing")
	}
	if env.AggregateID == "" {
		return types.Envelope{}, errors.New("aggregate_id missing")
	}
	if env.OccurredAt.IsZero() {
		if created, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			env.OccurredAt = created
		}
	}
	env.OccurredAt = env.OccurredAt.UTC()
	if body.Actor != nil && body.Actor.Role != "" {
		env.ActorRole = body.Actor.Role
	}
	return env, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
