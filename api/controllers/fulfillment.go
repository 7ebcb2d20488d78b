package controllers

import (
	"net/http"

	"github.com/zipdrop/zipdrop-backend/api/middleware"
	"github.com/zipdrop/zipdrop-backend/api/responses"
	"github.com/zipdrop/zipdrop-backend/api/validators"
	"github.com/zipdrop/zipdrop-backend/internal/fulfillment"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
)

// AcceptOrder claims a queued order for the authenticated courier.
func AcceptOrder(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		courierID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithCourierID(r.Context(), courierID.String())

		result, err := svc.Accept(ctx, orderID, courierID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type completeOrderRequest struct {
	ProofPhotoRef *string `json:"proof_photo_ref,omitempty"`
}

// CompleteOrder marks an in-progress order delivered by its assigned courier.
func CompleteOrder(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		courierID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithCourierID(r.Context(), courierID.String())

		var payload completeOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		result, err := svc.Complete(ctx, orderID, courierID, payload.ProofPhotoRef)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type disputeOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// DisputeOrder opens a dispute against an order.
func DisputeOrder(svc *fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
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

		var payload disputeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := enums.CancelActorCustomer
		switch middleware.RoleFromContext(r.Context()) {
		case "courier":
			actor = enums.CancelActorCourier
		case "admin":
			actor = enums.CancelActorAdmin
		}

		result, err := svc.Dispute(r.Context(), orderID, userID, actor, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
