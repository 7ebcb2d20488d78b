package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zipdrop/zipdrop-backend/api/controllers"
	webhookcontrollers "github.com/zipdrop/zipdrop-backend/api/controllers/webhooks"
	"github.com/zipdrop/zipdrop-backend/api/middleware"
	"github.com/zipdrop/zipdrop-backend/internal/fulfillment"
	"github.com/zipdrop/zipdrop-backend/internal/notifications"
	"github.com/zipdrop/zipdrop-backend/internal/orders"
	"github.com/zipdrop/zipdrop-backend/internal/reconcile"
	"github.com/zipdrop/zipdrop-backend/pkg/config"
	"github.com/zipdrop/zipdrop-backend/pkg/db"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
	"github.com/zipdrop/zipdrop-backend/pkg/metrics"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox/idempotency"
	"github.com/zipdrop/zipdrop-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
	fulfillmentSvc *fulfillment.Service,
	notificationsSvc notifications.Service,
	reconcileSvc *reconcile.Service,
	webhookGuard *idempotency.WebhookGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(reconcileSvc, cfg.Payments.WebhookSecret, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if redisClient != nil {
					r.Use(middleware.OrderRateLimit(redisClient, cfg.Orders.PlaceLimit, cfg.Orders.PlaceWindow, logg))
				}
				r.Post("/", controllers.CreateOrder(ordersSvc, logg))
			})
			r.Get("/", controllers.ListOrders(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
			r.Get("/{orderId}/status", controllers.OrderStatus(ordersSvc, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersSvc, logg))
			r.Post("/{orderId}/accept", controllers.AcceptOrder(fulfillmentSvc, logg))
			r.Post("/{orderId}/complete", controllers.CompleteOrder(fulfillmentSvc, logg))
			r.Post("/{orderId}/dispute", controllers.DisputeOrder(fulfillmentSvc, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsSvc, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsSvc, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsSvc, logg))
		})
	})

	return r
}
