package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zipdrop/zipdrop-backend/internal/inventory"
	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox"
)

type stubOrdersRepo struct {
	order        *models.Order
	products     []models.Product
	orderUpdates map[string]any
	transitions  []models.StatusTransition
	createdOrder *models.Order
	createdItems []models.OrderLineItem
	pending      []models.Order
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.createdOrder = order
	return order, nil
}

func (s *stubOrdersRepo) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	s.createdItems = append(s.createdItems, items...)
	return nil
}

func (s *stubOrdersRepo) SetLineItemDecrement(ctx context.Context, orderID, productID uuid.UUID, qty int) error {
	if s.order == nil || s.order.ID != orderID {
		return nil
	}
	for i := range s.order.Items {
		if s.order.Items[i].ProductID == productID {
			s.order.Items[i].DecrementedQty = qty
		}
	}
	return nil
}

func (s *stubOrdersRepo) CreateTransition(ctx context.Context, transition *models.StatusTransition) error {
	s.transitions = append(s.transitions, *transition)
	return nil
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.FindOrder(ctx, orderID)
}

func (s *stubOrdersRepo) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	if s.order == nil || s.order.PaymentReference == nil || *s.order.PaymentReference != reference {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) ClaimPaymentReference(ctx context.Context, orderID uuid.UUID, reference string) (bool, error) {
	if s.order == nil || s.order.ID != orderID {
		return false, nil
	}
	if s.order.PaymentReference != nil && *s.order.PaymentReference != reference {
		return false, nil
	}
	s.order.PaymentReference = &reference
	return true, nil
}

func (s *stubOrdersRepo) FindActiveProducts(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error) {
	return s.products, nil
}

func (s *stubOrdersRepo) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return s.pending, nil
}

func (s *stubOrdersRepo) ListUserOrders(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	if s.order == nil || s.order.UserID != userID {
		return nil, nil
	}
	return []models.Order{*s.order}, nil
}

func (s *stubOrdersRepo) ListTransitions(ctx context.Context, orderID uuid.UUID) ([]models.StatusTransition, error) {
	return s.transitions, nil
}

func (s *stubOrdersRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	s.orderUpdates = updates
	if s.order == nil || s.order.ID != orderID {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "status":
			if v, ok := value.(enums.OrderStatus); ok {
				s.order.Status = v
			}
		case "courier_id":
			if v, ok := value.(uuid.UUID); ok {
				id := v
				s.order.CourierID = &id
			}
		case "refund_amount_cents":
			if v, ok := value.(int); ok {
				amount := v
				s.order.RefundAmountCents = &amount
			}
		}
	}
	return nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubLedger struct {
	decremented []inventory.LineItem
	restored    []inventory.LineItem
	adjustments []inventory.Adjustment
	shortfalls  []inventory.Shortfall
}

func (s *stubLedger) DecrementAll(ctx context.Context, tx *gorm.DB, items []inventory.LineItem) ([]inventory.Adjustment, error) {
	s.decremented = append(s.decremented, items...)
	if s.adjustments != nil {
		return s.adjustments, nil
	}
	adjustments := make([]inventory.Adjustment, len(items))
	for i, item := range items {
		adjustments[i] = inventory.Adjustment{ProductID: item.ProductID, Requested: item.Qty, Applied: item.Qty}
	}
	return adjustments, nil
}

func (s *stubLedger) RestoreAll(ctx context.Context, tx *gorm.DB, items []inventory.LineItem) ([]inventory.Adjustment, error) {
	s.restored = append(s.restored, items...)
	adjustments := make([]inventory.Adjustment, len(items))
	for i, item := range items {
		adjustments[i] = inventory.Adjustment{ProductID: item.ProductID, Requested: item.Qty, Applied: item.Qty}
	}
	return adjustments, nil
}

func (s *stubLedger) CheckAvailability(ctx context.Context, tx *gorm.DB, items []inventory.LineItem) ([]inventory.Shortfall, error) {
	return s.shortfalls, nil
}

type stubTxRunner struct {
	db *gorm.DB
}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(s.db)
}

func newStubTx(t *testing.T) stubTxRunner {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:orders_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return stubTxRunner{db: db}
}

func newTestService(t *testing.T, repo *stubOrdersRepo, pub *stubOutboxPublisher, ledger *stubLedger, mode enums.OversellMode) Service {
	t.Helper()
	svc, err := NewService(repo, newStubTx(t), pub, ledger, mode)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func pendingOrder(userID uuid.UUID) *models.Order {
	productID := uuid.New()
	orderID := uuid.New()
	return &models.Order{
		ID:               orderID,
		UserID:           userID,
		Status:           enums.OrderStatusPending,
		RawAmountCents:   900,
		TipCents:         100,
		TotalAmountCents: 1000,
		DeliveryAddress:  "dorm 4, room 112",
		Items: []models.OrderLineItem{
			{ID: uuid.New(), OrderID: orderID, ProductID: productID, Name: "bagel", UnitPriceCents: 300, Qty: 3},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	productID := uuid.New()
	repo := &stubOrdersRepo{
		products: []models.Product{
			{ID: productID, Name: "cold brew", PriceCents: 450, AvailableQty: 10, IsActive: true},
		},
	}
	pub := &stubOutboxPublisher{}
	svc := newTestService(t, repo, pub, &stubLedger{}, enums.OversellModeClamp)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		UserID:          uuid.New(),
		Items:           []CreateOrderItem{{ProductID: productID, Qty: 2}},
		TipCents:        150,
		DeliveryAddress: "library steps",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending status, got %s", order.Status)
	}
	if order.RawAmountCents != 900 || order.TotalAmountCents != 1050 {
		t.Fatalf("unexpected totals: raw=%d total=%d", order.RawAmountCents, order.TotalAmountCents)
	}
	if len(repo.createdItems) != 1 || repo.createdItems[0].UnitPriceCents != 450 {
		t.Fatalf("expected captured unit price, got %+v", repo.createdItems)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected order_created event, got %+v", pub.events)
	}
}

func TestCreateOrderTotalMismatch(t *testing.T) {
	productID := uuid.New()
	repo := &stubOrdersRepo{
		products: []models.Product{
			{ID: productID, Name: "cold brew", PriceCents: 450, IsActive: true},
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedger{}, enums.OversellModeClamp)

	expected := 800
	_, err := svc.Create(context.Background(), CreateOrderInput{
		UserID:             uuid.New(),
		Items:              []CreateOrderItem{{ProductID: productID, Qty: 2}},
		DeliveryAddress:    "library steps",
		ExpectedTotalCents: &expected,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubOutboxPublisher{}, &stubLedger{}, enums.OversellModeClamp)

	cases := []CreateOrderInput{
		{Items: []CreateOrderItem{{ProductID: uuid.New(), Qty: 1}}, DeliveryAddress: "x"},
		{UserID: uuid.New(), DeliveryAddress: "x"},
		{UserID: uuid.New(), Items: []CreateOrderItem{{ProductID: uuid.New(), Qty: 1}}},
		{UserID: uuid.New(), Items: []CreateOrderItem{{ProductID: uuid.New(), Qty: 0}}, DeliveryAddress: "x"},
	}
	for i, input := range cases {
		if _, err := svc.Create(context.Background(), input); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestConfirmPaymentTransition(t *testing.T) {
	userID := uuid.New()
	repo := &stubOrdersRepo{order: pendingOrder(userID)}
	pub := &stubOutboxPublisher{}
	ledger := &stubLedger{}
	svc := newTestService(t, repo, pub, ledger, enums.OversellModeClamp)

	result, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     repo.order.ID,
		Event:       enums.OrderEventConfirmPayment,
		Actor:       enums.CancelActorSystem,
		ActorUserID: userID,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if !result.Applied || result.NewStatus != enums.OrderStatusInQueue {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(ledger.decremented) != 1 || ledger.decremented[0].Qty != 3 {
		t.Fatalf("expected decrement call, got %+v", ledger.decremented)
	}
	if len(repo.transitions) != 1 || repo.transitions[0].NewStatus != enums.OrderStatusInQueue {
		t.Fatalf("expected transition row, got %+v", repo.transitions)
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventOrderStatusChanged {
		t.Fatalf("expected status changed event, got %+v", pub.events)
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	order.Status = enums.OrderStatusInQueue
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedger{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, ledger, enums.OversellModeClamp)

	result, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventConfirmPayment,
		Actor:       enums.CancelActorSystem,
		ActorUserID: userID,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if result.Applied {
		t.Fatal("expected no-op for repeated confirmation")
	}
	if len(ledger.decremented) != 0 {
		t.Fatalf("expected no inventory calls, got %+v", ledger.decremented)
	}
	if repo.orderUpdates != nil {
		t.Fatalf("expected no order writes, got %+v", repo.orderUpdates)
	}
}

func TestAcceptAssignsCourier(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	order.Status = enums.OrderStatusInQueue
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedger{}, enums.OversellModeClamp)

	courierID := uuid.New()
	result, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventAccept,
		Actor:       enums.CancelActorCourier,
		ActorUserID: courierID,
		CourierID:   &courierID,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if result.NewStatus != enums.OrderStatusInProgress {
		t.Fatalf("unexpected result: %+v", result)
	}
	if order.CourierID == nil || *order.CourierID != courierID {
		t.Fatalf("expected courier assignment, got %+v", order.CourierID)
	}
}

func TestAcceptRace(t *testing.T) {
	userID := uuid.New()
	courierA := uuid.New()
	courierB := uuid.New()
	order := pendingOrder(userID)
	order.Status = enums.OrderStatusInProgress
	order.CourierID = &courierA
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedger{}, enums.OversellModeClamp)

	result, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventAccept,
		Actor:       enums.CancelActorCourier,
		ActorUserID: courierA,
		CourierID:   &courierA,
	})
	if err != nil {
		t.Fatalf("same courier re-accept: %v", err)
	}
	if result.Applied {
		t.Fatal("expected re-accept to be a no-op")
	}

	_, err = svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventAccept,
		Actor:       enums.CancelActorCourier,
		ActorUserID: courierB,
		CourierID:   &courierB,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error for losing courier: %v", err)
	}
}

func TestCancelRestoresInventory(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	order.Status = enums.OrderStatusInQueue
	order.Items[0].DecrementedQty = order.Items[0].Qty
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedger{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, ledger, enums.OversellModeClamp)

	result, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventCancel,
		Actor:       enums.CancelActorCustomer,
		ActorUserID: userID,
		Reason:      "ordered by mistake",
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if result.NewStatus != enums.OrderStatusCancelled {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(ledger.restored) != 1 || ledger.restored[0].Qty != order.Items[0].Qty {
		t.Fatalf("expected restore call, got %+v", ledger.restored)
	}
	if order.RefundAmountCents == nil || *order.RefundAmountCents != order.TotalAmountCents {
		t.Fatalf("expected full refund recorded, got %+v", order.RefundAmountCents)
	}
}

func TestCancelAfterClampedDecrementRestoresApplied(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	productID := order.Items[0].ProductID
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedger{
		adjustments: []inventory.Adjustment{
			{ProductID: productID, Requested: 3, Applied: 1, NewQuantity: 0, Oversold: true},
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, ledger, enums.OversellModeClamp)

	result, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventConfirmPayment,
		Actor:       enums.CancelActorSystem,
		ActorUserID: userID,
	})
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if !result.Oversold {
		t.Fatalf("expected oversold result, got %+v", result)
	}
	if order.Items[0].DecrementedQty != 1 {
		t.Fatalf("expected applied decrement recorded, got %d", order.Items[0].DecrementedQty)
	}

	_, err = svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventCancel,
		Actor:       enums.CancelActorCustomer,
		ActorUserID: userID,
		Reason:      "changed my mind",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(ledger.restored) != 1 || ledger.restored[0].Qty != 1 {
		t.Fatalf("expected restore of the applied amount only, got %+v", ledger.restored)
	}
}

func TestCancelRejectsRefundAboveTotal(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	order.Status = enums.OrderStatusInQueue
	order.Items[0].DecrementedQty = order.Items[0].Qty
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedger{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, ledger, enums.OversellModeClamp)

	refund := order.TotalAmountCents + 1
	_, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:           order.ID,
		Event:             enums.OrderEventCancel,
		Actor:             enums.CancelActorAdmin,
		ActorUserID:       userID,
		Reason:            "goodwill",
		RefundAmountCents: &refund,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != enums.OrderStatusInQueue {
		t.Fatalf("order must be untouched, got status %s", order.Status)
	}
	if len(ledger.restored) != 0 {
		t.Fatalf("expected no inventory writes, got %+v", ledger.restored)
	}
	if order.RefundAmountCents != nil {
		t.Fatalf("expected no refund recorded, got %+v", order.RefundAmountCents)
	}
}

func TestCancelPendingSkipsInventory(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedger{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, ledger, enums.OversellModeClamp)

	result, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventCancel,
		Actor:       enums.CancelActorCustomer,
		ActorUserID: userID,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if result.NewStatus != enums.OrderStatusCancelled {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(ledger.restored) != 0 {
		t.Fatalf("pending order was never decremented, got restore %+v", ledger.restored)
	}
	if order.RefundAmountCents != nil {
		t.Fatalf("nothing was charged, got refund %+v", order.RefundAmountCents)
	}
}

func TestCustomerCannotCancelInProgress(t *testing.T) {
	userID := uuid.New()
	courierID := uuid.New()
	order := pendingOrder(userID)
	order.Status = enums.OrderStatusInProgress
	order.CourierID = &courierID
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedger{}, enums.OversellModeClamp)

	_, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventCancel,
		Actor:       enums.CancelActorCustomer,
		ActorUserID: userID,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompleteRequiresAssignedCourier(t *testing.T) {
	userID := uuid.New()
	courierA := uuid.New()
	courierB := uuid.New()
	order := pendingOrder(userID)
	order.Status = enums.OrderStatusInProgress
	order.CourierID = &courierA
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedger{}, enums.OversellModeClamp)

	_, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventComplete,
		Actor:       enums.CancelActorCourier,
		ActorUserID: courierB,
		CourierID:   &courierB,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTerminalStateRejectsEvents(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	order.Status = enums.OrderStatusDelivered
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedger{}, enums.OversellModeClamp)

	_, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventCancel,
		Actor:       enums.CancelActorAdmin,
		ActorUserID: userID,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStrictModeRejectsShortfall(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedger{
		shortfalls: []inventory.Shortfall{
			{ProductID: order.Items[0].ProductID, Requested: 3, Available: 1},
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, ledger, enums.OversellModeStrict)

	_, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventConfirmPayment,
		Actor:       enums.CancelActorSystem,
		ActorUserID: userID,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledger.decremented) != 0 {
		t.Fatalf("expected no decrement after shortfall, got %+v", ledger.decremented)
	}
}

func TestClampModeEmitsOversoldEvent(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	productID := order.Items[0].ProductID
	repo := &stubOrdersRepo{order: order}
	pub := &stubOutboxPublisher{}
	ledger := &stubLedger{
		adjustments: []inventory.Adjustment{
			{ProductID: productID, Requested: 3, Applied: 1, Oversold: true},
		},
	}
	svc := newTestService(t, repo, pub, ledger, enums.OversellModeClamp)

	result, err := svc.ApplyTransition(context.Background(), TransitionInput{
		OrderID:     order.ID,
		Event:       enums.OrderEventConfirmPayment,
		Actor:       enums.CancelActorSystem,
		ActorUserID: userID,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if !result.Oversold {
		t.Fatal("expected oversold result")
	}
	var sawOversold bool
	for _, event := range pub.events {
		if event.EventType == enums.EventInventoryOversold {
			sawOversold = true
		}
	}
	if !sawOversold {
		t.Fatalf("expected inventory_oversold event, got %+v", pub.events)
	}
}

func TestGetStatus(t *testing.T) {
	userID := uuid.New()
	order := pendingOrder(userID)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubLedger{}, enums.OversellModeClamp)

	view, err := svc.GetStatus(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if view.OrderID != order.ID || view.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected view: %+v", view)
	}

	_, err = svc.GetStatus(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}
