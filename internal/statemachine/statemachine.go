package statemachine

import (
	"fmt"

	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
)

// InventoryEffect names the side effect a transition requires. The executor
// applies it in the same transaction as the status write.
type InventoryEffect int

const (
	EffectNone InventoryEffect = iota
	EffectDecrement
	EffectRestore
)

// Outcome is the decision produced for a (status, event) pair.
//
// Applied=false with a nil error means the event is a recognized no-op for
// the current status (a retried confirm_payment); callers must not write
// anything in that case.
type Outcome struct {
	Previous enums.OrderStatus
	Next     enums.OrderStatus
	Effect   InventoryEffect
	Applied  bool
}

// Apply is the pure transition function. It performs no I/O and never
// consults anything beyond its arguments; the caller is responsible for
// reading the current status under a row lock before calling it.
func Apply(current enums.OrderStatus, event enums.OrderEvent) (Outcome, error) {
	if !current.IsValid() {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", current))
	}
	if !event.IsValid() {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order event %q", event))
	}

	switch event {
	case enums.OrderEventConfirmPayment:
		if current == enums.OrderStatusPending {
			return Outcome{Previous: current, Next: enums.OrderStatusInQueue, Effect: EffectDecrement, Applied: true}, nil
		}
		// Payment webhooks are redelivered; once the order has left
		// pending the confirmation is a no-op, never an error.
		return Outcome{Previous: current, Next: current, Effect: EffectNone, Applied: false}, nil

	case enums.OrderEventAccept:
		if current == enums.OrderStatusInQueue {
			return Outcome{Previous: current, Next: enums.OrderStatusInProgress, Effect: EffectNone, Applied: true}, nil
		}

	case enums.OrderEventComplete:
		if current == enums.OrderStatusInProgress {
			return Outcome{Previous: current, Next: enums.OrderStatusDelivered, Effect: EffectNone, Applied: true}, nil
		}

	case enums.OrderEventCancel:
		switch current {
		case enums.OrderStatusPending:
			return Outcome{Previous: current, Next: enums.OrderStatusCancelled, Effect: EffectNone, Applied: true}, nil
		case enums.OrderStatusInQueue, enums.OrderStatusInProgress:
			// Inventory was decremented on the way into in_queue, so
			// cancellation must compensate.
			return Outcome{Previous: current, Next: enums.OrderStatusCancelled, Effect: EffectRestore, Applied: true}, nil
		}

	case enums.OrderEventDispute:
		switch current {
		case enums.OrderStatusInQueue, enums.OrderStatusInProgress, enums.OrderStatusDelivered:
			return Outcome{Previous: current, Next: enums.OrderStatusDisputed, Effect: EffectNone, Applied: true}, nil
		}
	}

	return Outcome{}, pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("event %s not allowed from status %s", event, current)).
		WithDetails(map[string]any{
			"current_status": current,
			"event":          event,
		})
}
