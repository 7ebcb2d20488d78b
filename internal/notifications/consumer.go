package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox/idempotency"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox/payloads"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox/registry"
	"github.com/zipdrop/zipdrop-backend/pkg/push"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type pushSender interface {
	Send(ctx context.Context, msg push.Message) error
}

// Consumer watches order events and turns status transitions into customer
// notifications. Push delivery is best-effort; the stored notification row is
// the source of truth.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	pusher       pushSender
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer. The push sender is
// optional; pass nil when the gateway is not configured.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, pusher pushSender, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		pusher:       pusher,
		decoders:     orderEventDecoders(),
		logg:         logg,
	}, nil
}

func orderEventDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventOrderStatusChanged, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	})
	return decoders
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != string(enums.EventOrderStatusChanged) {
		c.logg.Info(logCtx, "skipping non-status event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(enums.EventOrderStatusChanged, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	payload := *decoded.(*payloads.OrderStatusChangedEvent)

	logCtx = c.logg.WithOrderID(logCtx, payload.OrderID.String())
	logCtx = c.logg.WithField(logCtx, "new_status", payload.NewStatus)

	if err := c.handlePayload(ctx, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if typed := pkgerrors.As(err); typed != nil && !pkgerrors.IsRetryable(err) {
			// Redelivery cannot fix a bad payload; drop it.
			return processResult{ack: true}
		}
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handlePayload(ctx context.Context, payload payloads.OrderStatusChangedEvent, logCtx context.Context) error {
	title, message := composeStatusCopy(payload)
	if title == "" {
		c.logg.Info(logCtx, "status not handled")
		return nil
	}

	if payload.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event payload has no user id")
	}

	link := fmt.Sprintf("/orders/%s", payload.OrderID)
	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeOrderUpdate,
		Title:   title,
		Message: message,
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}

	if c.pusher != nil {
		pushMsg := push.Message{
			UserID: payload.UserID,
			Title:  title,
			Body:   message,
			Link:   link,
		}
		if err := c.pusher.Send(ctx, pushMsg); err != nil {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "push delivery failed")
		}
	}

	c.logg.Info(logCtx, "customer notified of order update")
	return nil
}

func composeStatusCopy(payload payloads.OrderStatusChangedEvent) (string, string) {
	switch payload.NewStatus {
	case enums.OrderStatusInQueue:
		return "Order confirmed", "Payment received. Your order is waiting for a courier."
	case enums.OrderStatusInProgress:
		return "Order on the way", "A courier picked up your order and is heading your way."
	case enums.OrderStatusDelivered:
		return "Order delivered", "Your order has been delivered. Enjoy!"
	case enums.OrderStatusCancelled:
		message := "Your order was cancelled."
		if payload.Reason != "" {
			message = fmt.Sprintf("Your order was cancelled: %s", payload.Reason)
		}
		return "Order cancelled", message
	case enums.OrderStatusDisputed:
		return "Dispute opened", "We received your dispute and will follow up shortly."
	default:
		return "", ""
	}
}

func stringPtr(value string) *string {
	return &value
}
