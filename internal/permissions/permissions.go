// Package permissions decides whether a subject may perform an action.
//
// Every action family is a set of predicates joined by OR. A predicate only
// looks at the subject and, for order actions, the order being touched.
package permissions

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// Subject is the caller a decision is made for. The zero value is anonymous.
type Subject struct {
	UserID       *uuid.UUID
	Capabilities map[enums.Capability]struct{}
}

// Anonymous returns a subject with no identity and no capabilities.
func Anonymous() Subject {
	return Subject{}
}

// NewSubject builds an authenticated subject. Unknown capabilities are dropped.
func NewSubject(userID uuid.UUID, caps []string) Subject {
	id := userID
	s := Subject{UserID: &id, Capabilities: make(map[enums.Capability]struct{}, len(caps))}
	for _, raw := range caps {
		c, err := enums.ParseCapability(raw)
		if err != nil {
			continue
		}
		s.Capabilities[c] = struct{}{}
	}
	return s
}

// IsAuthenticated reports whether the subject is a known user.
func (s Subject) IsAuthenticated() bool {
	return s.UserID != nil && *s.UserID != uuid.Nil
}

// Has reports whether the subject holds c.
func (s Subject) Has(c enums.Capability) bool {
	_, ok := s.Capabilities[c]
	return ok
}

// CapabilityList returns the held capabilities in canonical order.
func (s Subject) CapabilityList() []enums.Capability {
	out := []enums.Capability{}
	for _, c := range enums.AllCapabilities() {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Predicate is one named condition. order is nil for non-order actions.
type Predicate func(s Subject, order *models.Order) bool

// HasCapability allows subjects holding c.
func HasCapability(c enums.Capability) Predicate {
	return func(s Subject, _ *models.Order) bool {
		return s.Has(c)
	}
}

// IsOwner allows the user who placed the order.
func IsOwner() Predicate {
	return func(s Subject, order *models.Order) bool {
		if !s.IsAuthenticated() {
			return false
		}
		return order.IsOwnedBy(*s.UserID)
	}
}

// IsOwnerAndNew allows the order's owner while the order is still NEW.
func IsOwnerAndNew() Predicate {
	owner := IsOwner()
	return func(s Subject, order *models.Order) bool {
		return owner(s, order) && order.Status == enums.OrderStatusNew
	}
}

// AnyOf composes predicates by logical OR.
func AnyOf(preds ...Predicate) Predicate {
	return func(s Subject, order *models.Order) bool {
		for _, p := range preds {
			if p(s, order) {
				return true
			}
		}
		return false
	}
}

// Action names a gated operation.
type Action string

const (
	ActionAddProduct    Action = "add_product"
	ActionChangeProduct Action = "change_product"
	ActionDeleteProduct Action = "delete_product"

	ActionViewOrder    Action = "view_order"
	ActionAddOrder     Action = "add_order"
	ActionChangeOrder  Action = "change_order"
	ActionDeliverOrder Action = "deliver_order"
	ActionCancelOrder  Action = "cancel_order"

	ActionAddItem    Action = "add_orderproduct"
	ActionChangeItem Action = "change_orderproduct"
	ActionDeleteItem Action = "delete_orderproduct"
)

// Denial messages are fixed per action family.
const (
	MsgManageProducts = "you do not have permission to manage products"
	MsgViewOrder      = "you do not have permission to view this order"
	MsgCreateOrder    = "you do not have permission to create orders"
	MsgChangeOrder    = "you do not have permission to change this order"
	MsgDeliverOrder   = "you do not have permission to deliver orders"
	MsgCancelOrder    = "you do not have permission to cancel this order"
	MsgChangeItems    = "you do not have permission to change order items"
)

type rule struct {
	allow   Predicate
	message string
}

var rules = map[Action]rule{
	ActionAddProduct:    {HasCapability(enums.CapabilityAddProduct), MsgManageProducts},
	ActionChangeProduct: {HasCapability(enums.CapabilityChangeProduct), MsgManageProducts},
	ActionDeleteProduct: {HasCapability(enums.CapabilityDeleteProduct), MsgManageProducts},

	ActionViewOrder:    {AnyOf(HasCapability(enums.CapabilityViewOrder), IsOwner()), MsgViewOrder},
	ActionAddOrder:     {HasCapability(enums.CapabilityAddOrder), MsgCreateOrder},
	ActionChangeOrder:  {AnyOf(HasCapability(enums.CapabilityChangeOrder), IsOwnerAndNew()), MsgChangeOrder},
	ActionDeliverOrder: {HasCapability(enums.CapabilityDeliverOrder), MsgDeliverOrder},
	ActionCancelOrder:  {AnyOf(HasCapability(enums.CapabilityCancelOrder), IsOwnerAndNew()), MsgCancelOrder},

	ActionAddItem:    {AnyOf(HasCapability(enums.CapabilityAddOrderProduct), IsOwnerAndNew()), MsgChangeItems},
	ActionChangeItem: {AnyOf(HasCapability(enums.CapabilityChangeOrderProduct), IsOwnerAndNew()), MsgChangeItems},
	ActionDeleteItem: {AnyOf(HasCapability(enums.CapabilityDeleteOrderProduct), IsOwnerAndNew()), MsgChangeItems},
}

// IsAllowed evaluates action for s against order. Unknown actions are denied.
func IsAllowed(s Subject, action Action, order *models.Order) bool {
	r, ok := rules[action]
	if !ok {
		return false
	}
	return r.allow(s, order)
}

// Check returns a PermissionDenied error carrying the family message when the
// action is not allowed.
func Check(s Subject, action Action, order *models.Order) error {
	if IsAllowed(s, action, order) {
		return nil
	}
	return pkgerrors.PermissionDenied(DenialMessage(action))
}

// DenialMessage returns the fixed message shown when action is denied.
func DenialMessage(action Action) string {
	if r, ok := rules[action]; ok {
		return r.message
	}
	return "permission denied"
}
