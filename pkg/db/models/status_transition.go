package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/pkg/enums"
)

// StatusTransition is an immutable audit row written on every order status
// change. Rows are never updated or deleted.
type StatusTransition struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	PreviousStatus enums.OrderStatus `gorm:"column:previous_status;type:order_status;not null"`
	NewStatus      enums.OrderStatus `gorm:"column:new_status;type:order_status;not null"`
	Reason         string            `gorm:"column:reason;not null;default:''"`
	Actor          enums.CancelActor `gorm:"column:actor;type:text"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}
