package payloads

import (
	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/pkg/enums"
)

// OrderCreatedEvent signals a freshly placed order awaiting payment.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	UserID           uuid.UUID `json:"user_id"`
	TotalAmountCents int       `json:"total_amount_cents"`
	ItemCount        int       `json:"item_count"`
	IsCampusDelivery bool      `json:"is_campus_delivery"`
}

// OrderStatusChangedEvent is emitted on every applied status transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	UserID         uuid.UUID         `json:"user_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	NewStatus      enums.OrderStatus `json:"new_status"`
	Event          enums.OrderEvent  `json:"event"`
	CourierID      *uuid.UUID        `json:"courier_id,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// InventoryOversoldEvent is emitted when clamp mode floors a product at zero.
type InventoryOversoldEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Requested int       `json:"requested"`
	Applied   int       `json:"applied"`
}
