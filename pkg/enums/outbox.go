package enums

import "slices"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

var aggregateTypes = []OutboxAggregateType{AggregateOrder}

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(aggregateTypes, a)
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, aggregateTypes, "aggregate type")
}

// OutboxEventType names a domain event written to the outbox. Values are the
// event_type attribute consumers filter on, so they must not be renamed.
type OutboxEventType string

const (
	EventOrderCreated     OutboxEventType = "order_created"
	EventOrderUpdated     OutboxEventType = "order_updated"
	EventOrderDelivered   OutboxEventType = "order_delivered"
	EventOrderCancelled   OutboxEventType = "order_cancelled"
	EventOrderItemAdded   OutboxEventType = "order_item_added"
	EventOrderItemChanged OutboxEventType = "order_item_changed"
	EventOrderItemRemoved OutboxEventType = "order_item_removed"
)

var eventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderUpdated,
	EventOrderDelivered,
	EventOrderCancelled,
	EventOrderItemAdded,
	EventOrderItemChanged,
	EventOrderItemRemoved,
}

func (e OutboxEventType) IsValid() bool {
	return slices.Contains(eventTypes, e)
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, eventTypes, "event type")
}
