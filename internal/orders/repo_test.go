package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	"github.com/zipdrop/zipdrop-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_repo_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  raw_amount_cents INTEGER NOT NULL,
  tip_cents INTEGER NOT NULL DEFAULT 0,
  total_amount_cents INTEGER NOT NULL,
  delivery_address TEXT NOT NULL,
  delivery_instructions TEXT,
  is_campus_delivery INTEGER NOT NULL DEFAULT 0,
  payment_reference TEXT UNIQUE,
  courier_id TEXT,
  proof_photo_ref TEXT,
  refund_amount_cents INTEGER,
  refund_reason TEXT,
  estimated_delivery_time DATETIME,
  actual_delivery_time DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  decremented_qty INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`
	transitions := `
CREATE TABLE IF NOT EXISTS status_transitions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  previous_status TEXT NOT NULL,
  new_status TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  actor TEXT,
  created_at DATETIME
);`
	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  available_qty INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(lineItems).Error)
	require.NoError(t, db.Exec(transitions).Error)
	require.NoError(t, db.Exec(products).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Status:           status,
		RawAmountCents:   900,
		TotalAmountCents: 900,
		DeliveryAddress:  "dorm 4",
	}
	require.NoError(t, db.Create(order).Error)
	item := models.OrderLineItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      uuid.New(),
		Name:           "bagel",
		UnitPriceCents: 300,
		Qty:            3,
	}
	require.NoError(t, db.Create(&item).Error)
	order.Items = []models.OrderLineItem{item}
	return order
}

func TestClaimPaymentReference(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusPending)

	claimed, err := repo.ClaimPaymentReference(ctx, order.ID, "pi_123")
	require.NoError(t, err)
	require.True(t, claimed)

	// Same reference again is fine.
	claimed, err = repo.ClaimPaymentReference(ctx, order.ID, "pi_123")
	require.NoError(t, err)
	require.True(t, claimed)

	// A different reference cannot steal the slot.
	claimed, err = repo.ClaimPaymentReference(ctx, order.ID, "pi_456")
	require.NoError(t, err)
	require.False(t, claimed)

	found, err := repo.FindByPaymentReference(ctx, "pi_123")
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)
}

func TestFindOrderForUpdateLoadsItems(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusPending)

	loaded, err := repo.FindOrderForUpdate(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	require.Equal(t, 3, loaded.Items[0].Qty)
}

func TestSetLineItemDecrement(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusPending)
	productID := order.Items[0].ProductID

	require.NoError(t, repo.SetLineItemDecrement(ctx, order.ID, productID, 1))

	loaded, err := repo.FindOrderForUpdate(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	require.Equal(t, 3, loaded.Items[0].Qty)
	require.Equal(t, 1, loaded.Items[0].DecrementedQty)
}

func TestFindPendingBefore(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	stale := seedOrder(t, db, enums.OrderStatusPending)
	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-48*time.Hour)).Error)
	seedOrder(t, db, enums.OrderStatusPending)
	queued := seedOrder(t, db, enums.OrderStatusInQueue)
	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", queued.ID).
		Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	found, err := repo.FindPendingBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, stale.ID, found[0].ID)
}

func TestListTransitionsOrdered(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusInQueue)

	first := &models.StatusTransition{
		ID:             uuid.New(),
		OrderID:        order.ID,
		PreviousStatus: enums.OrderStatusPending,
		NewStatus:      enums.OrderStatusInQueue,
		Actor:          enums.CancelActorSystem,
		CreatedAt:      time.Now().Add(-time.Minute),
	}
	second := &models.StatusTransition{
		ID:             uuid.New(),
		OrderID:        order.ID,
		PreviousStatus: enums.OrderStatusInQueue,
		NewStatus:      enums.OrderStatusInProgress,
		Actor:          enums.CancelActorCourier,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, repo.CreateTransition(ctx, second))
	require.NoError(t, repo.CreateTransition(ctx, first))

	transitions, err := repo.ListTransitions(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	require.Equal(t, enums.OrderStatusInQueue, transitions[0].NewStatus)
	require.Equal(t, enums.OrderStatusInProgress, transitions[1].NewStatus)
}

func TestFindActiveProductsFiltersInactive(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	active := models.Product{ID: uuid.New(), Name: "bagel", Category: "food", PriceCents: 300, IsActive: true}
	inactive := models.Product{ID: uuid.New(), Name: "retired", Category: "food", PriceCents: 100, IsActive: false}
	require.NoError(t, db.Create(&active).Error)
	require.NoError(t, db.Create(&inactive).Error)

	products, err := repo.FindActiveProducts(ctx, []uuid.UUID{active.ID, inactive.ID})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, active.ID, products[0].ID)
}
