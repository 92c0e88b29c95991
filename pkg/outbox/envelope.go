// Package outbox records domain events in the same transaction as the state
// change that caused them. A separate publisher forwards committed rows.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is stamped on envelopes whose event leaves Version unset.
const CurrentVersion = 1

// ActorRef identifies who triggered the event. Anonymous checkouts carry no user.
type ActorRef struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
}

// PayloadEnvelope is what the payload column holds. Data is the typed event
// body that the registry decodes per event type.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func sealEnvelope(event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, err
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = CurrentVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	return env, nil
}
