package enums

import "fmt"

// OrderEvent names the inputs accepted by the order status machine.
type OrderEvent string

const (
	OrderEventConfirmPayment OrderEvent = "confirm_payment"
	OrderEventAccept         OrderEvent = "accept"
	OrderEventComplete       OrderEvent = "complete"
	OrderEventCancel         OrderEvent = "cancel"
	OrderEventDispute        OrderEvent = "dispute"
)

var validOrderEvents = []OrderEvent{
	OrderEventConfirmPayment,
	OrderEventAccept,
	OrderEventComplete,
	OrderEventCancel,
	OrderEventDispute,
}

// String implements fmt.Stringer.
func (e OrderEvent) String() string {
	return string(e)
}

// IsValid reports whether the value is a known OrderEvent.
func (e OrderEvent) IsValid() bool {
	for _, candidate := range validOrderEvents {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOrderEvent converts raw input into an OrderEvent.
func ParseOrderEvent(value string) (OrderEvent, error) {
	for _, candidate := range validOrderEvents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order event %q", value)
}
