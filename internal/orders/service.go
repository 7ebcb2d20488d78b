package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zipdrop/zipdrop-backend/internal/inventory"
	"github.com/zipdrop/zipdrop-backend/internal/statemachine"
	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryLedger applies stock effects inside the caller's transaction.
type InventoryLedger interface {
	DecrementAll(ctx context.Context, tx *gorm.DB, items []inventory.LineItem) ([]inventory.Adjustment, error)
	RestoreAll(ctx context.Context, tx *gorm.DB, items []inventory.LineItem) ([]inventory.Adjustment, error)
	CheckAvailability(ctx context.Context, tx *gorm.DB, items []inventory.LineItem) ([]inventory.Shortfall, error)
}

// Service owns order placement and every status change. ApplyTransition is
// the single write path for order status; nothing else updates the column.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	ApplyTransition(ctx context.Context, input TransitionInput) (TransitionResult, error)
	ApplyTransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (TransitionResult, error)
	GetDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	GetStatus(ctx context.Context, orderID uuid.UUID) (*StatusView, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	ledger       InventoryLedger
	oversellMode enums.OversellMode
}

// NewService builds the orders service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledger InventoryLedger, oversellMode enums.OversellMode) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if !oversellMode.IsValid() {
		return nil, fmt.Errorf("invalid oversell mode %q", oversellMode)
	}
	return &service{
		repo:         repo,
		tx:           tx,
		outbox:       outboxSvc,
		ledger:       ledger,
		oversellMode: oversellMode,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if input.DeliveryAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if input.TipCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip cannot be negative")
	}
	productIDs := make([]uuid.UUID, 0, len(input.Items))
	qtyByProduct := make(map[uuid.UUID]int, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if _, dup := qtyByProduct[item.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		qtyByProduct[item.ProductID] = item.Qty
		productIDs = append(productIDs, item.ProductID)
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		products, err := repo.FindActiveProducts(ctx, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		byID := make(map[uuid.UUID]models.Product, len(products))
		for _, product := range products {
			byID[product.ID] = product
		}
		for _, id := range productIDs {
			if _, ok := byID[id]; !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found or inactive").
					WithDetails(map[string]any{"product_id": id})
			}
		}

		raw := 0
		lineItems := make([]models.OrderLineItem, 0, len(input.Items))
		for _, item := range input.Items {
			product := byID[item.ProductID]
			raw += product.PriceCents * item.Qty
			lineItems = append(lineItems, models.OrderLineItem{
				ProductID:      product.ID,
				Name:           product.Name,
				UnitPriceCents: product.PriceCents,
				Qty:            item.Qty,
			})
		}
		total := raw + input.TipCents
		if input.ExpectedTotalCents != nil && *input.ExpectedTotalCents != total {
			return pkgerrors.New(pkgerrors.CodeValidation, "order total does not match current prices").
				WithDetails(map[string]any{
					"expected_total_cents": *input.ExpectedTotalCents,
					"computed_total_cents": total,
				})
		}

		order := &models.Order{
			UserID:                input.UserID,
			Status:                enums.OrderStatusPending,
			RawAmountCents:        raw,
			TipCents:              input.TipCents,
			TotalAmountCents:      total,
			DeliveryAddress:       input.DeliveryAddress,
			DeliveryInstructions:  input.DeliveryInstructions,
			IsCampusDelivery:      input.IsCampusDelivery,
			EstimatedDeliveryTime: input.EstimatedDeliveryTime,
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range lineItems {
			lineItems[i].OrderID = order.ID
		}
		if err := repo.CreateLineItems(ctx, lineItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}
		order.Items = lineItems
		created = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: "customer"},
			Data: payloads.OrderCreatedEvent{
				OrderID:          order.ID,
				UserID:           order.UserID,
				TotalAmountCents: order.TotalAmountCents,
				ItemCount:        len(lineItems),
				IsCampusDelivery: order.IsCampusDelivery,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) ApplyTransition(ctx context.Context, input TransitionInput) (TransitionResult, error) {
	var result TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		result, terr = s.ApplyTransitionTx(ctx, tx, input)
		return terr
	})
	if err != nil {
		return TransitionResult{}, err
	}
	return result, nil
}

// ApplyTransitionTx runs the transition inside the caller's transaction. The
// payment reconciler uses this to claim the payment reference and flip the
// status atomically.
func (s *service) ApplyTransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (TransitionResult, error) {
	if input.OrderID == uuid.Nil {
		return TransitionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Event.IsValid() {
		return TransitionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown order event")
	}
	if tx == nil {
		return TransitionResult{}, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order transition")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TransitionResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return TransitionResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for transition")
	}

	outcome, err := statemachine.Apply(order.Status, input.Event)
	if err != nil {
		if translated := s.translateConflict(err, order, input); translated != nil {
			return TransitionResult{}, translated
		}
		// A courier re-sending accept for an order they already hold.
		return TransitionResult{
			OrderID:        order.ID,
			PreviousStatus: order.Status,
			NewStatus:      order.Status,
			Applied:        false,
		}, nil
	}
	result := TransitionResult{
		OrderID:        order.ID,
		PreviousStatus: outcome.Previous,
		NewStatus:      outcome.Next,
		Applied:        outcome.Applied,
	}
	if !outcome.Applied {
		return result, nil
	}

	if err := s.authorize(order, input); err != nil {
		return TransitionResult{}, err
	}

	adjustments, err := s.applyInventoryEffect(ctx, tx, order, outcome.Effect)
	if err != nil {
		return TransitionResult{}, err
	}
	result.Adjustments = adjustments
	for _, adjustment := range adjustments {
		if adjustment.Oversold {
			result.Oversold = true
		}
	}

	updates := s.buildUpdates(order, input, outcome)
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return TransitionResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	transition := &models.StatusTransition{
		OrderID:        order.ID,
		PreviousStatus: outcome.Previous,
		NewStatus:      outcome.Next,
		Reason:         input.Reason,
		Actor:          input.Actor,
	}
	if err := repo.CreateTransition(ctx, transition); err != nil {
		return TransitionResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status transition")
	}

	if err := s.emitTransitionEvents(ctx, tx, order, input, outcome, adjustments); err != nil {
		return TransitionResult{}, err
	}
	return result, nil
}

// translateConflict maps the state machine's generic rejection to the
// courier-facing accept semantics: nil when the same courier repeats an
// accept, CONFLICT when a different courier races for a taken order.
func (s *service) translateConflict(err error, order *models.Order, input TransitionInput) error {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		return err
	}
	if input.Event != enums.OrderEventAccept || order.Status != enums.OrderStatusInProgress {
		return err
	}
	if input.CourierID != nil && order.CourierID != nil && *input.CourierID == *order.CourierID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "order already taken by another courier").
		WithDetails(map[string]any{"order_id": order.ID})
}

func (s *service) authorize(order *models.Order, input TransitionInput) error {
	switch input.Event {
	case enums.OrderEventAccept:
		if input.CourierID == nil || *input.CourierID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "courier id required to accept an order")
		}
	case enums.OrderEventComplete:
		if input.CourierID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "courier id required to complete an order")
		}
		if order.CourierID == nil || *order.CourierID != *input.CourierID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to a different courier")
		}
	case enums.OrderEventCancel:
		if input.RefundAmountCents != nil {
			if *input.RefundAmountCents < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "refund cannot be negative")
			}
			if *input.RefundAmountCents > order.TotalAmountCents {
				return pkgerrors.New(pkgerrors.CodeValidation, "refund cannot exceed the order total").
					WithDetails(map[string]any{
						"refund_amount_cents": *input.RefundAmountCents,
						"total_amount_cents":  order.TotalAmountCents,
					})
			}
		}
		switch input.Actor {
		case enums.CancelActorCustomer:
			if order.UserID != input.ActorUserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to a different customer")
			}
			if order.Status == enums.OrderStatusInProgress {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already out for delivery")
			}
		case enums.CancelActorCourier:
			if input.CourierID == nil || order.CourierID == nil || *order.CourierID != *input.CourierID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to a different courier")
			}
		case enums.CancelActorAdmin, enums.CancelActorSystem:
			// Unrestricted.
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "cancel actor required")
		}
	case enums.OrderEventDispute:
		if input.Reason == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
		}
	}
	return nil
}

func (s *service) applyInventoryEffect(ctx context.Context, tx *gorm.DB, order *models.Order, effect statemachine.InventoryEffect) ([]inventory.Adjustment, error) {
	switch effect {
	case statemachine.EffectDecrement:
		items := make([]inventory.LineItem, 0, len(order.Items))
		for _, line := range order.Items {
			items = append(items, inventory.LineItem{ProductID: line.ProductID, Qty: line.Qty})
		}
		if len(items) == 0 {
			return nil, nil
		}
		if s.oversellMode == enums.OversellModeStrict {
			shortfalls, err := s.ledger.CheckAvailability(ctx, tx, items)
			if err != nil {
				return nil, err
			}
			if len(shortfalls) > 0 {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
					WithDetails(map[string]any{"shortfalls": shortfalls})
			}
		}
		adjustments, err := s.ledger.DecrementAll(ctx, tx, items)
		if err != nil {
			return nil, err
		}
		// Persist the applied amount per line; a clamped decrement must
		// restore only what it actually took.
		repo := s.repo.WithTx(tx)
		for _, adjustment := range adjustments {
			if err := repo.SetLineItemDecrement(ctx, order.ID, adjustment.ProductID, adjustment.Applied); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record applied decrement")
			}
		}
		return adjustments, nil
	case statemachine.EffectRestore:
		items := make([]inventory.LineItem, 0, len(order.Items))
		for _, line := range order.Items {
			if line.DecrementedQty <= 0 {
				continue
			}
			items = append(items, inventory.LineItem{ProductID: line.ProductID, Qty: line.DecrementedQty})
		}
		if len(items) == 0 {
			return nil, nil
		}
		return s.ledger.RestoreAll(ctx, tx, items)
	default:
		return nil, nil
	}
}

func (s *service) buildUpdates(order *models.Order, input TransitionInput, outcome statemachine.Outcome) map[string]any {
	updates := map[string]any{"status": outcome.Next}
	switch input.Event {
	case enums.OrderEventAccept:
		updates["courier_id"] = *input.CourierID
	case enums.OrderEventComplete:
		updates["actual_delivery_time"] = time.Now()
		if input.ProofPhotoRef != nil {
			updates["proof_photo_ref"] = *input.ProofPhotoRef
		}
	case enums.OrderEventCancel:
		if input.RefundAmountCents != nil {
			updates["refund_amount_cents"] = *input.RefundAmountCents
		} else if outcome.Previous != enums.OrderStatusPending {
			// Paid orders refund in full unless an admin overrides.
			updates["refund_amount_cents"] = order.TotalAmountCents
		}
		if input.RefundReason != nil {
			updates["refund_reason"] = *input.RefundReason
		} else if input.Reason != "" {
			updates["refund_reason"] = input.Reason
		}
	}
	return updates
}

func (s *service) emitTransitionEvents(ctx context.Context, tx *gorm.DB, order *models.Order, input TransitionInput, outcome statemachine.Outcome, adjustments []inventory.Adjustment) error {
	actor := &outbox.ActorRef{
		UserID:    input.ActorUserID,
		CourierID: input.CourierID,
		Role:      string(input.Actor),
	}
	courierID := input.CourierID
	if courierID == nil {
		courierID = order.CourierID
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			UserID:         order.UserID,
			PreviousStatus: outcome.Previous,
			NewStatus:      outcome.Next,
			Event:          input.Event,
			CourierID:      courierID,
			Reason:         input.Reason,
		},
	})
	if err != nil {
		return err
	}

	for _, adjustment := range adjustments {
		if !adjustment.Oversold {
			continue
		}
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryOversold,
			AggregateType: enums.AggregateProduct,
			AggregateID:   adjustment.ProductID,
			Version:       1,
			Actor:         actor,
			Data: payloads.InventoryOversoldEvent{
				ProductID: adjustment.ProductID,
				OrderID:   order.ID,
				Requested: adjustment.Requested,
				Applied:   adjustment.Applied,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *service) GetDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	transitions, err := s.repo.ListTransitions(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transitions")
	}
	return &OrderDetail{Order: *order, Transitions: transitions}, nil
}

func (s *service) GetStatus(ctx context.Context, orderID uuid.UUID) (*StatusView, error) {
	detail, err := s.GetDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order := detail.Order
	return &StatusView{
		OrderID:               order.ID,
		Status:                order.Status,
		CourierID:             order.CourierID,
		EstimatedDeliveryTime: order.EstimatedDeliveryTime,
		ActualDeliveryTime:    order.ActualDeliveryTime,
		UpdatedAt:             order.UpdatedAt,
	}, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.repo.ListUserOrders(ctx, userID, limit)
}

func (s *service) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return s.repo.FindPendingBefore(ctx, cutoff)
}
