package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
)

// Repository is the persistence surface the rollup needs.
type Repository interface {
	FindFinishedBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
	UpsertBucket(ctx context.Context, bucket models.StatsBucket) error
}

// Service recomputes daily order aggregates. Each bucket is rebuilt in full
// from the orders that finished inside it, so reruns are safe.
type Service struct {
	repo   Repository
	window time.Duration
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the stats rollup.
func NewService(repo Repository, window time.Duration, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stats repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if window <= 0 {
		window = 48 * time.Hour
	}
	return &Service{
		repo:   repo,
		window: window,
		logg:   logg,
		now:    time.Now,
	}, nil
}

// Rollup rebuilds every daily bucket touched by the configured window.
func (s *Service) Rollup(ctx context.Context) error {
	end := s.now().UTC()
	start := dayStart(end.Add(-s.window))

	orders, err := s.repo.FindFinishedBetween(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load finished orders: %w", err)
	}

	buckets := buildBuckets(orders)

	written := 0
	for cursor := start; !cursor.After(end); cursor = cursor.Add(24 * time.Hour) {
		bucket, ok := buckets[cursor]
		if !ok {
			bucket = models.StatsBucket{BucketStart: cursor}
		}
		if err := s.repo.UpsertBucket(ctx, bucket); err != nil {
			return fmt.Errorf("upsert bucket %s: %w", cursor.Format(time.RFC3339), err)
		}
		written++
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"buckets": written,
		"orders":  len(orders),
	})
	s.logg.Info(logCtx, "stats rollup complete")
	return nil
}

func buildBuckets(orders []models.Order) map[time.Time]models.StatsBucket {
	type accumulator struct {
		bucket       models.StatsBucket
		deliverySecs decimal.Decimal
		delivered    int64
	}

	acc := map[time.Time]*accumulator{}
	for _, order := range orders {
		day := dayStart(finishedAt(order))
		entry, ok := acc[day]
		if !ok {
			entry = &accumulator{bucket: models.StatsBucket{BucketStart: day}}
			acc[day] = entry
		}

		switch order.Status {
		case enums.OrderStatusDelivered:
			entry.bucket.OrdersDelivered++
			entry.bucket.RevenueCents += int64(order.TotalAmountCents)
			entry.bucket.TipsCents += int64(order.TipCents)
			if order.ActualDeliveryTime != nil {
				seconds := order.ActualDeliveryTime.Sub(order.CreatedAt).Seconds()
				entry.deliverySecs = entry.deliverySecs.Add(decimal.NewFromFloat(seconds))
				entry.delivered++
			}
		case enums.OrderStatusCancelled:
			entry.bucket.OrdersCancelled++
		}
	}

	buckets := make(map[time.Time]models.StatsBucket, len(acc))
	for day, entry := range acc {
		if entry.delivered > 0 {
			avg, _ := entry.deliverySecs.Div(decimal.NewFromInt(entry.delivered)).Round(3).Float64()
			entry.bucket.AvgDeliverySeconds = avg
		}
		buckets[day] = entry.bucket
	}
	return buckets
}

func finishedAt(order models.Order) time.Time {
	if order.ActualDeliveryTime != nil {
		return *order.ActualDeliveryTime
	}
	return order.UpdatedAt
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
