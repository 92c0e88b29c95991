package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// OrderLine is one grouped product line inside an order event.
type OrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Amount    int       `json:"amount"`
}

// OrderCreatedEvent is emitted when a basket is materialized into an order.
type OrderCreatedEvent struct {
	OrderID uuid.UUID       `json:"order_id"`
	UserID  *uuid.UUID      `json:"user_id,omitempty"`
	Email   string          `json:"email,omitempty"`
	Lines   []OrderLine     `json:"lines"`
	Total   decimal.Decimal `json:"total"`
}

// OrderStatusChangedEvent covers deliver and cancel transitions.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
	ChangedBy      *uuid.UUID        `json:"changed_by,omitempty"`
}

// OrderUpdatedEvent carries the contact details after an edit.
type OrderUpdatedEvent struct {
	OrderID   uuid.UUID  `json:"order_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Phone     string     `json:"phone"`
	Email     string     `json:"email,omitempty"`
	ChangedBy *uuid.UUID `json:"changed_by,omitempty"`
}

// OrderItemEvent describes one line item as it stands after an add or change,
// or as it was before removal. Previous is set only on change.
type OrderItemEvent struct {
	OrderID   uuid.UUID  `json:"order_id"`
	ItemID    uuid.UUID  `json:"item_id"`
	ProductID uuid.UUID  `json:"product_id"`
	Amount    int        `json:"amount"`
	Previous  *OrderLine `json:"previous,omitempty"`
}
