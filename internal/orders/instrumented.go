package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	"github.com/zipdrop/zipdrop-backend/pkg/metrics"
)

// instrumentedService counts applied transitions and oversell clamps on top
// of the wrapped service. Reads pass through untouched.
type instrumentedService struct {
	inner        Service
	orderMetrics *metrics.OrderMetrics
	oversellMode enums.OversellMode
}

// NewInstrumentedService wraps an orders service with transition metrics.
// A nil metrics handle returns the inner service unchanged.
func NewInstrumentedService(inner Service, orderMetrics *metrics.OrderMetrics, oversellMode enums.OversellMode) Service {
	if inner == nil {
		return nil
	}
	if orderMetrics == nil {
		return inner
	}
	return &instrumentedService{
		inner:        inner,
		orderMetrics: orderMetrics,
		oversellMode: oversellMode,
	}
}

func (s *instrumentedService) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	return s.inner.Create(ctx, input)
}

func (s *instrumentedService) ApplyTransition(ctx context.Context, input TransitionInput) (TransitionResult, error) {
	result, err := s.inner.ApplyTransition(ctx, input)
	s.record(input, result, err)
	return result, err
}

func (s *instrumentedService) ApplyTransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (TransitionResult, error) {
	result, err := s.inner.ApplyTransitionTx(ctx, tx, input)
	s.record(input, result, err)
	return result, err
}

func (s *instrumentedService) GetDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	return s.inner.GetDetail(ctx, orderID)
}

func (s *instrumentedService) GetStatus(ctx context.Context, orderID uuid.UUID) (*StatusView, error) {
	return s.inner.GetStatus(ctx, orderID)
}

func (s *instrumentedService) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	return s.inner.ListForUser(ctx, userID, limit)
}

func (s *instrumentedService) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return s.inner.FindPendingBefore(ctx, cutoff)
}

func (s *instrumentedService) record(input TransitionInput, result TransitionResult, err error) {
	if err != nil || !result.Applied {
		return
	}
	s.orderMetrics.IncTransition(string(input.Event), string(result.NewStatus))
	if result.Oversold {
		s.orderMetrics.IncOversold(string(s.oversellMode))
	}
}
