package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zipdrop/zipdrop-backend/internal/orders"
	dbpkg "github.com/zipdrop/zipdrop-backend/pkg/db"
	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
	"github.com/zipdrop/zipdrop-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderRepository interface {
	WithTx(tx *gorm.DB) orders.Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
}

type transitionApplier interface {
	ApplyTransitionTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (orders.TransitionResult, error)
}

// Input is one payment confirmation received from the payment processor.
// OrderID is optional; when absent the order is resolved by reference.
type Input struct {
	PaymentReference string
	OrderID          *uuid.UUID
	AmountCents      *int
}

// Result reports what reconciliation did with the confirmation.
type Result struct {
	Skipped        bool              `json:"skipped"`
	Applied        bool              `json:"applied"`
	OrderID        uuid.UUID         `json:"order_id,omitempty"`
	PreviousStatus enums.OrderStatus `json:"previous_status,omitempty"`
	NewStatus      enums.OrderStatus `json:"new_status,omitempty"`
	Oversold       bool              `json:"oversold"`
}

// Service turns payment confirmations into order transitions. The reference
// claim and the status flip happen in one transaction so a retried webhook
// can never double-apply.
type Service struct {
	repo         orderRepository
	tx           txRunner
	applier      transitionApplier
	logg         *logger.Logger
	orderMetrics *metrics.OrderMetrics
}

// NewService builds the reconciliation service.
func NewService(repo orderRepository, tx txRunner, applier transitionApplier, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if applier == nil {
		return nil, fmt.Errorf("transition applier required")
	}
	return &Service{repo: repo, tx: tx, applier: applier, logg: logg}, nil
}

// WithMetrics attaches reconciliation outcome counters. Returns the service
// for chained construction.
func (s *Service) WithMetrics(orderMetrics *metrics.OrderMetrics) *Service {
	s.orderMetrics = orderMetrics
	return s
}

// Reconcile applies one payment confirmation. A confirmation that matches no
// order is skipped rather than failed; payment processors retry hard errors
// and an unknown order will not become known on retry.
func (s *Service) Reconcile(ctx context.Context, input Input) (Result, error) {
	if input.PaymentReference == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	order, err := s.resolveOrder(ctx, input)
	if err != nil {
		return Result{}, err
	}
	if order == nil {
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "payment_reference", input.PaymentReference)
			s.logg.Warn(logCtx, "payment confirmation matches no order, skipping")
		}
		s.orderMetrics.IncReconciled("skipped")
		return Result{Skipped: true}, nil
	}

	if input.AmountCents != nil && *input.AmountCents != order.TotalAmountCents {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "payment amount does not match order total").
			WithDetails(map[string]any{
				"order_id":             order.ID,
				"order_total_cents":    order.TotalAmountCents,
				"payment_amount_cents": *input.AmountCents,
			})
	}

	var result Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		claimed, err := repo.ClaimPaymentReference(ctx, order.ID, input.PaymentReference)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_orders_payment_reference") {
				return pkgerrors.New(pkgerrors.CodeIdempotency, "payment reference already used by another order").
					WithDetails(map[string]any{"payment_reference": input.PaymentReference})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payment reference")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeConflict, "order holds a different payment reference").
				WithDetails(map[string]any{"order_id": order.ID})
		}

		transition, err := s.applier.ApplyTransitionTx(ctx, tx, orders.TransitionInput{
			OrderID:     order.ID,
			Event:       enums.OrderEventConfirmPayment,
			Actor:       enums.CancelActorSystem,
			ActorUserID: order.UserID,
			Reason:      "payment confirmed",
		})
		if err != nil {
			return err
		}
		result = Result{
			Applied:        transition.Applied,
			OrderID:        order.ID,
			PreviousStatus: transition.PreviousStatus,
			NewStatus:      transition.NewStatus,
			Oversold:       transition.Oversold,
		}
		return nil
	})
	if err != nil {
		s.orderMetrics.IncReconciled("error")
		return Result{}, err
	}
	if result.Applied {
		s.orderMetrics.IncReconciled("applied")
	} else {
		s.orderMetrics.IncReconciled("noop")
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, result.OrderID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"payment_reference": input.PaymentReference,
			"applied":           result.Applied,
		})
		s.logg.Info(logCtx, "payment reconciled")
	}
	return result, nil
}

func (s *Service) resolveOrder(ctx context.Context, input Input) (*models.Order, error) {
	if input.OrderID != nil && *input.OrderID != uuid.Nil {
		order, err := s.repo.FindOrder(ctx, *input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by id")
		}
		return order, nil
	}
	order, err := s.repo.FindByPaymentReference(ctx, input.PaymentReference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment reference")
	}
	return order, nil
}
