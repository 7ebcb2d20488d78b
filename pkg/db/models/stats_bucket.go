package models

import "time"

// StatsBucket holds per-day aggregates over finished orders. The rollup job
// recomputes each bucket in full; concurrent writers are last-writer-wins.
type StatsBucket struct {
	BucketStart        time.Time `gorm:"column:bucket_start;primaryKey"`
	OrdersDelivered    int       `gorm:"column:orders_delivered;not null;default:0"`
	OrdersCancelled    int       `gorm:"column:orders_cancelled;not null;default:0"`
	RevenueCents       int64     `gorm:"column:revenue_cents;not null;default:0"`
	TipsCents          int64     `gorm:"column:tips_cents;not null;default:0"`
	AvgDeliverySeconds float64   `gorm:"column:avg_delivery_seconds;not null;default:0"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
