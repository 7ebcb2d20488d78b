package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the canonical catalog listing. AvailableQty is owned by the
// inventory ledger and never mutated directly by order logic.
type Product struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Category     string    `gorm:"column:category;not null"`
	PriceCents   int       `gorm:"column:price_cents;not null"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	IsActive     bool      `gorm:"column:is_active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
