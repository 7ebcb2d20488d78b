package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/api/middleware"
	"github.com/zipdrop/zipdrop-backend/api/responses"
	"github.com/zipdrop/zipdrop-backend/api/validators"
	internalorders "github.com/zipdrop/zipdrop-backend/internal/orders"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
	"github.com/zipdrop/zipdrop-backend/pkg/pagination"
)

type createOrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Qty       int    `json:"qty" validate:"required,min=1"`
}

type createOrderRequest struct {
	Items                 []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	TipCents              int                      `json:"tip_cents" validate:"gte=0"`
	DeliveryAddress       string                   `json:"delivery_address" validate:"required"`
	DeliveryInstructions  *string                  `json:"delivery_instructions,omitempty"`
	IsCampusDelivery      bool                     `json:"is_campus_delivery"`
	EstimatedDeliveryTime *time.Time               `json:"estimated_delivery_time,omitempty"`
	ExpectedTotalCents    *int                     `json:"expected_total_cents,omitempty"`
}

// CreateOrder places a new order for the authenticated customer.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]internalorders.CreateOrderItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			items = append(items, internalorders.CreateOrderItem{ProductID: productID, Qty: item.Qty})
		}

		order, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			UserID:                userID,
			Items:                 items,
			TipCents:              payload.TipCents,
			DeliveryAddress:       payload.DeliveryAddress,
			DeliveryInstructions:  payload.DeliveryInstructions,
			IsCampusDelivery:      payload.IsCampusDelivery,
			EstimatedDeliveryTime: payload.EstimatedDeliveryTime,
			ExpectedTotalCents:    payload.ExpectedTotalCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// ListOrders returns the authenticated customer's orders, newest first.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OrderDetail returns the full order read model including its transition log.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetDetail(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canViewOrder(r, detail.Order.UserID, detail.Order.CourierID, userID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user"))
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// OrderStatus is the lightweight polling endpoint for order tracking.
func OrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetStatus(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type cancelOrderRequest struct {
	Reason            string  `json:"reason" validate:"required"`
	RefundAmountCents *int    `json:"refund_amount_cents,omitempty" validate:"omitempty,gte=0"`
	RefundReason      *string `json:"refund_reason,omitempty"`
}

// CancelOrder cancels an order on behalf of the customer or an admin.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := enums.CancelActorCustomer
		if middleware.RoleFromContext(r.Context()) == "admin" {
			actor = enums.CancelActorAdmin
		}

		result, err := svc.ApplyTransition(r.Context(), internalorders.TransitionInput{
			OrderID:           orderID,
			Event:             enums.OrderEventCancel,
			Actor:             actor,
			ActorUserID:       userID,
			Reason:            payload.Reason,
			RefundAmountCents: payload.RefundAmountCents,
			RefundReason:      payload.RefundReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func canViewOrder(r *http.Request, ownerID uuid.UUID, courierID *uuid.UUID, actorID uuid.UUID) bool {
	if ownerID == actorID {
		return true
	}
	if courierID != nil && *courierID == actorID {
		return true
	}
	return middleware.RoleFromContext(r.Context()) == "admin"
}

func actorUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return parsed, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return parsed, nil
}
