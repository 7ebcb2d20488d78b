package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/internal/inventory"
	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
)

// CreateOrderItem is one requested line in a new order.
type CreateOrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

// CreateOrderInput carries everything needed to place an order. Prices are
// never taken from the client; the service captures them from the catalog.
type CreateOrderInput struct {
	UserID                uuid.UUID
	Items                 []CreateOrderItem
	TipCents              int
	DeliveryAddress       string
	DeliveryInstructions  *string
	IsCampusDelivery      bool
	EstimatedDeliveryTime *time.Time
	// ExpectedTotalCents, when set, must match the server-side total. It
	// guards against the client displaying a stale catalog price.
	ExpectedTotalCents *int
}

// TransitionInput carries an event against one order plus the actor context
// the executor needs for authorization and audit.
type TransitionInput struct {
	OrderID           uuid.UUID
	Event             enums.OrderEvent
	Actor             enums.CancelActor
	ActorUserID       uuid.UUID
	CourierID         *uuid.UUID
	Reason            string
	ProofPhotoRef     *string
	RefundAmountCents *int
	RefundReason      *string
}

// TransitionResult reports what the executor did.
type TransitionResult struct {
	OrderID        uuid.UUID              `json:"order_id"`
	PreviousStatus enums.OrderStatus      `json:"previous_status"`
	NewStatus      enums.OrderStatus      `json:"new_status"`
	Applied        bool                   `json:"applied"`
	Adjustments    []inventory.Adjustment `json:"adjustments,omitempty"`
	Oversold       bool                   `json:"oversold"`
}

// OrderDetail is the full read model for one order.
type OrderDetail struct {
	Order       models.Order              `json:"order"`
	Transitions []models.StatusTransition `json:"transitions"`
}

// StatusView is the lightweight polling payload for order tracking.
type StatusView struct {
	OrderID               uuid.UUID         `json:"order_id"`
	Status                enums.OrderStatus `json:"status"`
	CourierID             *uuid.UUID        `json:"courier_id,omitempty"`
	EstimatedDeliveryTime *time.Time        `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryTime    *time.Time        `json:"actual_delivery_time,omitempty"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

