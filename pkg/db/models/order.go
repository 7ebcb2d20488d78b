package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/pkg/enums"
)

// Order is the aggregate root for a customer order. Status is only ever
// written through the orders transition executor; every change appends a
// StatusTransition row.
type Order struct {
	ID                    uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	Status                enums.OrderStatus  `gorm:"column:status;type:order_status;not null;default:'pending'"`
	RawAmountCents        int                `gorm:"column:raw_amount_cents;not null"`
	TipCents              int                `gorm:"column:tip_cents;not null;default:0"`
	TotalAmountCents      int                `gorm:"column:total_amount_cents;not null"`
	DeliveryAddress       string             `gorm:"column:delivery_address;not null"`
	DeliveryInstructions  *string            `gorm:"column:delivery_instructions"`
	IsCampusDelivery      bool               `gorm:"column:is_campus_delivery;not null;default:false"`
	PaymentReference      *string            `gorm:"column:payment_reference;uniqueIndex:ux_orders_payment_reference"`
	CourierID             *uuid.UUID         `gorm:"column:courier_id;type:uuid"`
	ProofPhotoRef         *string            `gorm:"column:proof_photo_ref"`
	RefundAmountCents     *int               `gorm:"column:refund_amount_cents"`
	RefundReason          *string            `gorm:"column:refund_reason"`
	EstimatedDeliveryTime *time.Time         `gorm:"column:estimated_delivery_time"`
	ActualDeliveryTime    *time.Time         `gorm:"column:actual_delivery_time"`
	Items                 []OrderLineItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Transitions           []StatusTransition `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
