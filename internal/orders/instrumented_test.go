package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/metrics"
)

type stubOrdersService struct {
	applyFn func(ctx context.Context, input TransitionInput) (TransitionResult, error)
}

func (s *stubOrdersService) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	return nil, nil
}

func (s *stubOrdersService) ApplyTransition(ctx context.Context, input TransitionInput) (TransitionResult, error) {
	return s.applyFn(ctx, input)
}

func (s *stubOrdersService) ApplyTransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (TransitionResult, error) {
	return s.applyFn(ctx, input)
}

func (s *stubOrdersService) GetDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	return nil, nil
}

func (s *stubOrdersService) GetStatus(ctx context.Context, orderID uuid.UUID) (*StatusView, error) {
	return nil, nil
}

func (s *stubOrdersService) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersService) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

func TestInstrumentedServiceCountsAppliedTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	inner := &stubOrdersService{
		applyFn: func(ctx context.Context, input TransitionInput) (TransitionResult, error) {
			return TransitionResult{
				Applied:   true,
				NewStatus: enums.OrderStatusCancelled,
				Oversold:  true,
			}, nil
		},
	}
	svc := NewInstrumentedService(inner, metrics.NewOrderMetrics(reg), enums.OversellModeClamp)

	if _, err := svc.ApplyTransition(context.Background(), TransitionInput{Event: enums.OrderEventCancel}); err != nil {
		t.Fatalf("apply transition: %v", err)
	}

	if got := counterValue(t, reg, "order_transitions_total", "event", "cancel"); got != 1 {
		t.Fatalf("expected transitions=1, got %f", got)
	}
	if got := counterValue(t, reg, "inventory_oversold_total", "mode", "clamp"); got != 1 {
		t.Fatalf("expected oversold=1, got %f", got)
	}
}

func TestInstrumentedServiceSkipsFailedAndNoopTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	calls := 0
	inner := &stubOrdersService{
		applyFn: func(ctx context.Context, input TransitionInput) (TransitionResult, error) {
			calls++
			if calls == 1 {
				return TransitionResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "wrong state")
			}
			return TransitionResult{Applied: false, NewStatus: enums.OrderStatusDelivered}, nil
		},
	}
	svc := NewInstrumentedService(inner, metrics.NewOrderMetrics(reg), enums.OversellModeClamp)

	if _, err := svc.ApplyTransition(context.Background(), TransitionInput{Event: enums.OrderEventComplete}); err == nil {
		t.Fatal("expected error from inner service")
	}
	if _, err := svc.ApplyTransition(context.Background(), TransitionInput{Event: enums.OrderEventConfirmPayment}); err != nil {
		t.Fatalf("apply transition: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "order_transitions_total" && len(mf.GetMetric()) > 0 {
			t.Fatalf("expected no transition samples, got %d", len(mf.GetMetric()))
		}
	}
}

func TestNewInstrumentedServiceWithoutMetricsReturnsInner(t *testing.T) {
	inner := &stubOrdersService{}
	if got := NewInstrumentedService(inner, nil, enums.OversellModeClamp); got != Service(inner) {
		t.Fatal("expected inner service back when metrics are nil")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %q with %s=%s not found", name, label, value)
	return 0
}
