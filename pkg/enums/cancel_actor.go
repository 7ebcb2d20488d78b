package enums

import "fmt"

// CancelActor identifies who initiated an order cancellation or dispute.
type CancelActor string

const (
	CancelActorCustomer CancelActor = "customer"
	CancelActorCourier  CancelActor = "courier"
	CancelActorAdmin    CancelActor = "admin"
	CancelActorSystem   CancelActor = "system"
)

var validCancelActors = []CancelActor{
	CancelActorCustomer,
	CancelActorCourier,
	CancelActorAdmin,
	CancelActorSystem,
}

// String implements fmt.Stringer.
func (a CancelActor) String() string {
	return string(a)
}

// IsValid reports whether the value is a known CancelActor.
func (a CancelActor) IsValid() bool {
	for _, candidate := range validCancelActors {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseCancelActor converts raw input into a CancelActor.
func ParseCancelActor(value string) (CancelActor, error) {
	for _, candidate := range validCancelActors {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel actor %q", value)
}
