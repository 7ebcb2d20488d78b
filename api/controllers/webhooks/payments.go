package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/api/responses"
	"github.com/zipdrop/zipdrop-backend/internal/reconcile"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
)

const signatureHeader = "X-Payment-Signature"

type reconcileService interface {
	Reconcile(ctx context.Context, input reconcile.Input) (reconcile.Result, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, deliveryID string) (bool, error)
	Delete(ctx context.Context, deliveryID string) error
}

// paymentEvent is the confirmation payload the payment processor delivers.
type paymentEvent struct {
	DeliveryID       string `json:"delivery_id"`
	EventType        string `json:"event_type"`
	PaymentReference string `json:"payment_reference"`
	OrderID          string `json:"order_id,omitempty"`
	AmountCents      *int   `json:"amount_cents,omitempty"`
}

// PaymentWebhook verifies the processor signature and reconciles the payment
// against its order. The guard is advisory; the unique payment reference and
// the locked transition keep a replayed delivery from double-applying.
func PaymentWebhook(svc reconcileService, secret string, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(signatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature missing"))
			return
		}
		if !validateSignature(payload, secret, sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid payment signature"))
			return
		}

		var event paymentEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		if strings.TrimSpace(event.PaymentReference) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required"))
			return
		}

		deliveryID := strings.TrimSpace(event.DeliveryID)
		if deliveryID == "" {
			deliveryID = event.PaymentReference
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, deliveryID)
		if err != nil {
			// Guard trouble must not drop a payment; reconcile is idempotent.
			if logg != nil {
				logg.Error(ctx, "webhook idempotency check failed", err)
			}
		} else if alreadyProcessed {
			responses.WriteSuccess(w, reconcile.Result{Skipped: true})
			return
		}

		input := reconcile.Input{
			PaymentReference: event.PaymentReference,
			AmountCents:      event.AmountCents,
		}
		if raw := strings.TrimSpace(event.OrderID); raw != "" {
			orderID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
				return
			}
			input.OrderID = &orderID
		}

		result, err := svc.Reconcile(ctx, input)
		if err != nil {
			_ = guard.Delete(ctx, deliveryID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			fields := map[string]any{
				"delivery_id": deliveryID,
				"applied":     result.Applied,
				"skipped":     result.Skipped,
			}
			logg.Info(logg.WithFields(ctx, fields), "payment webhook processed")
		}
		responses.WriteSuccess(w, result)
	}
}

func validateSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
