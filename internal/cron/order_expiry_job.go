package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zipdrop/zipdrop-backend/internal/orders"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
	"go.uber.org/multierr"
)

const expiredOrderReason = "pending order expired"

type orderTransitioner interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]orderRef, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) error
}

// OrderExpiryJobParams configure the pending order expiry scheduler.
type OrderExpiryJobParams struct {
	Logger     *logger.Logger
	Orders     orders.Service
	PendingTTL time.Duration
}

type orderRef struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// NewOrderExpiryJob builds the cron job that cancels stale pending orders.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.PendingTTL <= 0 {
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	return &orderExpiryJob{
		logg:       params.Logger,
		orders:     serviceTransitioner{svc: params.Orders},
		pendingTTL: params.PendingTTL,
		now:        time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg       *logger.Logger
	orders     orderTransitioner
	pendingTTL time.Duration
	now        func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.pendingTTL)
	stale, err := j.orders.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query pending orders for expiry: %w", err)
	}

	var errs []error
	expired := 0
	for _, order := range stale {
		if err := j.expireOrder(ctx, order.ID); err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired, "stale": len(stale)})
	j.logg.Info(logCtx, "order expiry loop complete")
	return multierr.Combine(errs...)
}

func (j *orderExpiryJob) expireOrder(ctx context.Context, orderID uuid.UUID) error {
	err := j.orders.Cancel(ctx, orderID, expiredOrderReason)
	if err == nil {
		return nil
	}
	// The order may have advanced or been cancelled since the query ran.
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
		return nil
	}
	return err
}

// serviceTransitioner adapts the orders service to the narrow job interface.
type serviceTransitioner struct {
	svc orders.Service
}

func (a serviceTransitioner) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]orderRef, error) {
	found, err := a.svc.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	refs := make([]orderRef, 0, len(found))
	for _, order := range found {
		refs = append(refs, orderRef{ID: order.ID, CreatedAt: order.CreatedAt})
	}
	return refs, nil
}

func (a serviceTransitioner) Cancel(ctx context.Context, orderID uuid.UUID, reason string) error {
	_, err := a.svc.ApplyTransition(ctx, orders.TransitionInput{
		OrderID: orderID,
		Event:   enums.OrderEventCancel,
		Actor:   enums.CancelActorSystem,
		Reason:  reason,
	})
	return err
}
