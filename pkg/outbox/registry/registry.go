// Package registry tells the publisher where each outbox event type goes and
// how to decode its payload. Anything it cannot make sense of is reported as
// non-retryable so the row is parked instead of retried forever.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/outbox"
	"github.com/angelmondragon/storefront/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	Decode        func(json.RawMessage) (any, error)
}

// ResolvedEvent is an outbox row that passed validation, with its typed body.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a failure that another attempt cannot fix.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// IsNonRetryable reports whether err carries a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// decodeAs unmarshals into a fresh *T.
func decodeAs[T any](data json.RawMessage) (any, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewEventRegistry routes every order event to the order events topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.OrderEventsTopic
	if topic == "" {
		return nil, errors.New("order events topic is required")
	}
	reg := &EventRegistry{byType: map[enums.OutboxEventType]EventDescriptor{}}
	reg.add(enums.EventOrderCreated, enums.AggregateOrder, topic, decodeAs[payloads.OrderCreatedEvent])
	reg.add(enums.EventOrderUpdated, enums.AggregateOrder, topic, decodeAs[payloads.OrderUpdatedEvent])
	reg.add(enums.EventOrderDelivered, enums.AggregateOrder, topic, decodeAs[payloads.OrderStatusChangedEvent])
	reg.add(enums.EventOrderCancelled, enums.AggregateOrder, topic, decodeAs[payloads.OrderStatusChangedEvent])
	for _, itemEvent := range []enums.OutboxEventType{enums.EventOrderItemAdded, enums.EventOrderItemChanged, enums.EventOrderItemRemoved} {
		reg.add(itemEvent, enums.AggregateOrder, topic, decodeAs[payloads.OrderItemEvent])
	}
	return reg, nil
}

func (r *EventRegistry) add(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, decode func(json.RawMessage) (any, error)) {
	r.byType[eventType] = EventDescriptor{EventType: eventType, AggregateType: aggregate, Topic: topic, Decode: decode}
}

// Topics lists each distinct destination topic once, sorted.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, desc := range r.byType {
		if !slices.Contains(topics, desc.Topic) {
			topics = append(topics, desc.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.byType[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if body := bytes.TrimSpace(env.Data); len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, permanent("payload missing for %s", event.EventType)
	}
	payload, err := desc.Decode(env.Data)
	if err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
