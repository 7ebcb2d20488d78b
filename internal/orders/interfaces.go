package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	SetLineItemDecrement(ctx context.Context, orderID, productID uuid.UUID, qty int) error
	CreateTransition(ctx context.Context, transition *models.StatusTransition) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	ClaimPaymentReference(ctx context.Context, orderID uuid.UUID, reference string) (bool, error)
	FindActiveProducts(ctx context.Context, productIDs []uuid.UUID) ([]models.Product, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, limit int) ([]models.Order, error)
	ListTransitions(ctx context.Context, orderID uuid.UUID) ([]models.StatusTransition, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}
