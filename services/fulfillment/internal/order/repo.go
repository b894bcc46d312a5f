package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderRepo persists orders. Save is a compare-and-set on Version: it fails
// with pkg.ErrVersionConflict when the stored version moved, and bumps
// order.Version on success.
type OrderRepo interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByTenant(ctx context.Context, tenantID, status string) ([]*Order, error)
	// ListStranded returns accepted orders last updated at or before cutoff
	// that have no kitchen tickets.
	ListStranded(ctx context.Context, cutoff time.Time) ([]*Order, error)
	Save(ctx context.Context, order *Order) error
}

// OrderItemRepo persists order lines. CreateMany keeps none of the batch when
// it fails.
type OrderItemRepo interface {
	CreateMany(ctx context.Context, items []*OrderItem) error
	DeleteByOrder(ctx context.Context, orderID uuid.UUID) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error)
}
