package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zipdrop/zipdrop-backend/pkg/db/models"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
)

// Adjustment reports the outcome of a single product mutation.
type Adjustment struct {
	ProductID   uuid.UUID `json:"product_id"`
	Requested   int       `json:"requested"`
	Applied     int       `json:"applied"`
	NewQuantity int       `json:"new_quantity"`
	Oversold    bool      `json:"oversold"`
}

// Shortfall describes a line item whose requested quantity exceeds stock.
type Shortfall struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// LineItem is the minimal view of an order line the ledger needs.
type LineItem struct {
	ProductID uuid.UUID
	Qty       int
}

// Ledger performs atomic stock mutations. All operations require the
// caller's transaction so the status flip and inventory writes commit or
// roll back together.
type Ledger struct{}

// NewLedger returns the default inventory ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Decrement subtracts qty from the product's available stock, flooring at
// zero. The row is locked for the duration of the update, so concurrent
// callers for the same product serialize on it.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (Adjustment, error) {
	if err := validateRequest(tx, productID, qty); err != nil {
		return Adjustment{}, err
	}

	var product models.Product
	err := lockForUpdate(tx.WithContext(ctx)).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Adjustment{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": productID})
		}
		return Adjustment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product for decrement")
	}

	applied := qty
	if product.AvailableQty < qty {
		applied = product.AvailableQty
	}
	newQty := product.AvailableQty - applied

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET available_qty = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, newQty, productID)
	if res.Error != nil {
		return Adjustment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement inventory")
	}

	return Adjustment{
		ProductID:   productID,
		Requested:   qty,
		Applied:     applied,
		NewQuantity: newQty,
		Oversold:    applied < qty,
	}, nil
}

// Restore adds qty back to the product's available stock.
func (l *Ledger) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (Adjustment, error) {
	if err := validateRequest(tx, productID, qty); err != nil {
		return Adjustment{}, err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return Adjustment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore inventory")
	}
	if res.RowsAffected == 0 {
		return Adjustment{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}

	var product models.Product
	if err := tx.WithContext(ctx).Where("id = ?", productID).First(&product).Error; err != nil {
		return Adjustment{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product after restore")
	}

	return Adjustment{
		ProductID:   productID,
		Requested:   qty,
		Applied:     qty,
		NewQuantity: product.AvailableQty,
	}, nil
}

// DecrementAll applies Decrement for every line item inside the caller's
// transaction. Individual products may floor at zero without aborting the
// batch; the returned adjustments flag which ones did.
func (l *Ledger) DecrementAll(ctx context.Context, tx *gorm.DB, items []LineItem) ([]Adjustment, error) {
	adjustments := make([]Adjustment, 0, len(items))
	for _, item := range items {
		adjustment, err := l.Decrement(ctx, tx, item.ProductID, item.Qty)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adjustment)
	}
	return adjustments, nil
}

// RestoreAll adds back every line item's quantity.
func (l *Ledger) RestoreAll(ctx context.Context, tx *gorm.DB, items []LineItem) ([]Adjustment, error) {
	adjustments := make([]Adjustment, 0, len(items))
	for _, item := range items {
		adjustment, err := l.Restore(ctx, tx, item.ProductID, item.Qty)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adjustment)
	}
	return adjustments, nil
}

// CheckAvailability returns the shortfalls for any line item whose request
// exceeds available stock. Used by strict oversell mode to reject before
// any mutation happens.
func (l *Ledger) CheckAvailability(ctx context.Context, tx *gorm.DB, items []LineItem) ([]Shortfall, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for availability check")
	}

	var shortfalls []Shortfall
	for _, item := range items {
		var product models.Product
		err := lockForUpdate(tx.WithContext(ctx)).
			Where("id = ?", item.ProductID).
			First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product for availability check")
		}
		if product.AvailableQty < item.Qty {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: item.ProductID,
				Requested: item.Qty,
				Available: product.AvailableQty,
			})
		}
	}
	return shortfalls, nil
}

// lockForUpdate adds a row lock on dialects that support it. SQLite has no
// SELECT ... FOR UPDATE; its writer lock covers the whole transaction.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func validateRequest(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory mutation")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}
