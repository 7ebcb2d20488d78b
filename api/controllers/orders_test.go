package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zipdrop/zipdrop-backend/api/middleware"
	internalorders "github.com/zipdrop/zipdrop-backend/internal/orders"
	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
)

type testOrdersService struct {
	createFn          func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	applyTransitionFn func(ctx context.Context, input internalorders.TransitionInput) (internalorders.TransitionResult, error)
	getDetailFn       func(ctx context.Context, orderID uuid.UUID) (*internalorders.OrderDetail, error)
	getStatusFn       func(ctx context.Context, orderID uuid.UUID) (*internalorders.StatusView, error)
	listForUserFn     func(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
}

func (s *testOrdersService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.Order{}, nil
}

func (s *testOrdersService) ApplyTransition(ctx context.Context, input internalorders.TransitionInput) (internalorders.TransitionResult, error) {
	if s.applyTransitionFn != nil {
		return s.applyTransitionFn(ctx, input)
	}
	return internalorders.TransitionResult{}, nil
}

func (s *testOrdersService) ApplyTransitionTx(ctx context.Context, tx *gorm.DB, input internalorders.TransitionInput) (internalorders.TransitionResult, error) {
	return s.ApplyTransition(ctx, input)
}

func (s *testOrdersService) GetDetail(ctx context.Context, orderID uuid.UUID) (*internalorders.OrderDetail, error) {
	if s.getDetailFn != nil {
		return s.getDetailFn(ctx, orderID)
	}
	return &internalorders.OrderDetail{}, nil
}

func (s *testOrdersService) GetStatus(ctx context.Context, orderID uuid.UUID) (*internalorders.StatusView, error) {
	if s.getStatusFn != nil {
		return s.getStatusFn(ctx, orderID)
	}
	return &internalorders.StatusView{}, nil
}

func (s *testOrdersService) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	if s.listForUserFn != nil {
		return s.listForUserFn(ctx, userID, limit)
	}
	return nil, nil
}

func (s *testOrdersService) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withActor(req *http.Request, userID uuid.UUID, role string) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, role)
	return req.WithContext(ctx)
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestCreateOrderSuccess(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	var got internalorders.CreateOrderInput
	svc := &testOrdersService{
		createFn: func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
			got = input
			return &models.Order{ID: uuid.New(), UserID: input.UserID, Status: enums.OrderStatusPending}, nil
		},
	}

	body := `{"items":[{"product_id":"` + productID.String() + `","qty":2}],"tip_cents":300,"delivery_address":"North Hall 212","is_campus_delivery":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = withActor(req, userID, "customer")
	resp := httptest.NewRecorder()

	CreateOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if got.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, got.UserID)
	}
	if len(got.Items) != 1 || got.Items[0].ProductID != productID || got.Items[0].Qty != 2 {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.TipCents != 300 {
		t.Fatalf("expected tip 300, got %d", got.TipCents)
	}
}

func TestCreateOrderRequiresActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()

	CreateOrder(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[],"delivery_address":"North Hall"}`))
	req = withActor(req, uuid.New(), "customer")
	resp := httptest.NewRecorder()

	CreateOrder(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCancelOrderMapsActorRole(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	var got internalorders.TransitionInput
	svc := &testOrdersService{
		applyTransitionFn: func(ctx context.Context, input internalorders.TransitionInput) (internalorders.TransitionResult, error) {
			got = input
			return internalorders.TransitionResult{OrderID: input.OrderID, Applied: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(`{"reason":"changed my mind"}`))
	req = withActor(req, userID, "admin")
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	CancelOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if got.Event != enums.OrderEventCancel {
		t.Fatalf("expected cancel event, got %s", got.Event)
	}
	if got.Actor != enums.CancelActorAdmin {
		t.Fatalf("expected admin actor, got %s", got.Actor)
	}
	if got.Reason != "changed my mind" {
		t.Fatalf("unexpected reason %q", got.Reason)
	}
}

func TestOrderDetailForbiddenForStranger(t *testing.T) {
	ownerID := uuid.New()
	orderID := uuid.New()
	svc := &testOrdersService{
		getDetailFn: func(ctx context.Context, id uuid.UUID) (*internalorders.OrderDetail, error) {
			return &internalorders.OrderDetail{Order: models.Order{ID: id, UserID: ownerID}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = withActor(req, uuid.New(), "customer")
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	OrderDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestOrderDetailVisibleToAssignedCourier(t *testing.T) {
	courierID := uuid.New()
	orderID := uuid.New()
	svc := &testOrdersService{
		getDetailFn: func(ctx context.Context, id uuid.UUID) (*internalorders.OrderDetail, error) {
			cid := courierID
			return &internalorders.OrderDetail{Order: models.Order{ID: id, UserID: uuid.New(), CourierID: &cid}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = withActor(req, courierID, "courier")
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	OrderDetail(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestOrderStatusSuccess(t *testing.T) {
	orderID := uuid.New()
	svc := &testOrdersService{
		getStatusFn: func(ctx context.Context, id uuid.UUID) (*internalorders.StatusView, error) {
			return &internalorders.StatusView{OrderID: id, Status: enums.OrderStatusInProgress}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String()+"/status", nil)
	req = withActor(req, uuid.New(), "customer")
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	OrderStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var envelope struct {
		Data internalorders.StatusView `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != enums.OrderStatusInProgress {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
}

func TestListOrdersPassesLimit(t *testing.T) {
	userID := uuid.New()
	var gotLimit int
	svc := &testOrdersService{
		listForUserFn: func(ctx context.Context, uid uuid.UUID, limit int) ([]models.Order, error) {
			gotLimit = limit
			return []models.Order{{ID: uuid.New(), UserID: uid}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5", nil)
	req = withActor(req, userID, "customer")
	resp := httptest.NewRecorder()

	ListOrders(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if gotLimit != 5 {
		t.Fatalf("expected limit 5, got %d", gotLimit)
	}
}
