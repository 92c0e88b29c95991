package enums

import "slices"

// Capability is a named permission a user may hold.
type Capability string

const (
	CapabilityAddProduct    Capability = "add_product"
	CapabilityChangeProduct Capability = "change_product"
	CapabilityDeleteProduct Capability = "delete_product"

	CapabilityViewOrder    Capability = "view_order"
	CapabilityAddOrder     Capability = "add_order"
	CapabilityChangeOrder  Capability = "change_order"
	CapabilityDeliverOrder Capability = "deliver_order"
	CapabilityCancelOrder  Capability = "cancel_order"

	CapabilityAddOrderProduct    Capability = "add_orderproduct"
	CapabilityChangeOrderProduct Capability = "change_orderproduct"
	CapabilityDeleteOrderProduct Capability = "delete_orderproduct"
)

var validCapabilities = []Capability{
	CapabilityAddProduct,
	CapabilityChangeProduct,
	CapabilityDeleteProduct,
	CapabilityViewOrder,
	CapabilityAddOrder,
	CapabilityChangeOrder,
	CapabilityDeliverOrder,
	CapabilityCancelOrder,
	CapabilityAddOrderProduct,
	CapabilityChangeOrderProduct,
	CapabilityDeleteOrderProduct,
}

// String implements fmt.Stringer.
func (c Capability) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Capability.
func (c Capability) IsValid() bool {
	return slices.Contains(validCapabilities, c)
}

// ParseCapability converts raw input into a Capability.
func ParseCapability(value string) (Capability, error) {
	return parse(value, validCapabilities, "capability")
}

// AllCapabilities returns every known capability, used when provisioning staff accounts.
func AllCapabilities() []Capability {
	return slices.Clone(validCapabilities)
}
