package fulfillment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/internal/orders"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
)

type transitionApplier interface {
	ApplyTransition(ctx context.Context, input orders.TransitionInput) (orders.TransitionResult, error)
}

// Service exposes the courier-side order operations. Each call is a thin
// mapping onto the orders transition executor, which owns all locking and
// authorization.
type Service struct {
	applier transitionApplier
}

// NewService builds the fulfillment service.
func NewService(applier transitionApplier) (*Service, error) {
	if applier == nil {
		return nil, fmt.Errorf("transition applier required")
	}
	return &Service{applier: applier}, nil
}

// Accept claims an order from the queue for the courier. Losing a race for
// an order surfaces as CONFLICT; repeating an accept the courier already won
// is a no-op.
func (s *Service) Accept(ctx context.Context, orderID, courierID uuid.UUID) (orders.TransitionResult, error) {
	if courierID == uuid.Nil {
		return orders.TransitionResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "courier identity missing")
	}
	return s.applier.ApplyTransition(ctx, orders.TransitionInput{
		OrderID:     orderID,
		Event:       enums.OrderEventAccept,
		Actor:       enums.CancelActorCourier,
		ActorUserID: courierID,
		CourierID:   &courierID,
	})
}

// Complete marks the order delivered, optionally recording a proof photo.
func (s *Service) Complete(ctx context.Context, orderID, courierID uuid.UUID, proofPhotoRef *string) (orders.TransitionResult, error) {
	if courierID == uuid.Nil {
		return orders.TransitionResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "courier identity missing")
	}
	return s.applier.ApplyTransition(ctx, orders.TransitionInput{
		OrderID:       orderID,
		Event:         enums.OrderEventComplete,
		Actor:         enums.CancelActorCourier,
		ActorUserID:   courierID,
		CourierID:     &courierID,
		ProofPhotoRef: proofPhotoRef,
	})
}

// Cancel drops an order the courier can no longer deliver. Stock decremented
// at payment time goes back to the shelf.
func (s *Service) Cancel(ctx context.Context, orderID, courierID uuid.UUID, reason string) (orders.TransitionResult, error) {
	if courierID == uuid.Nil {
		return orders.TransitionResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "courier identity missing")
	}
	if reason == "" {
		return orders.TransitionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "cancel reason required")
	}
	return s.applier.ApplyTransition(ctx, orders.TransitionInput{
		OrderID:     orderID,
		Event:       enums.OrderEventCancel,
		Actor:       enums.CancelActorCourier,
		ActorUserID: courierID,
		CourierID:   &courierID,
		Reason:      reason,
	})
}

// Dispute flags an order for manual review.
func (s *Service) Dispute(ctx context.Context, orderID, actorUserID uuid.UUID, actor enums.CancelActor, reason string) (orders.TransitionResult, error) {
	if actorUserID == uuid.Nil {
		return orders.TransitionResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !actor.IsValid() {
		return orders.TransitionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown actor")
	}
	input := orders.TransitionInput{
		OrderID:     orderID,
		Event:       enums.OrderEventDispute,
		Actor:       actor,
		ActorUserID: actorUserID,
		Reason:      reason,
	}
	if actor == enums.CancelActorCourier {
		courierID := actorUserID
		input.CourierID = &courierID
	}
	return s.applier.ApplyTransition(ctx, input)
}
