package stats

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
)

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a stats repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) FindFinishedBetween(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled}).
		Where("updated_at >= ? AND updated_at <= ?", from, to).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repositoryImpl) UpsertBucket(ctx context.Context, bucket models.StatsBucket) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "bucket_start"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"orders_delivered",
				"orders_cancelled",
				"revenue_cents",
				"tips_cents",
				"avg_delivery_seconds",
				"updated_at",
			}),
		}).
		Create(&bucket).Error
}
