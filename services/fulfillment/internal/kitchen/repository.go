package kitchen

import (
	"context"

	"github.com/google/uuid"
)

type TicketFilter struct {
	TenantID string
	Station  string
	Status   string
	OrderID  *OrderID
	Limit    int
	Offset   int
}

// TicketRepository persists tickets. CreateAll writes a dispatch batch as a
// whole: when any ticket collides with an existing order+station it fails
// with ErrTicketExists, and on any failure none of the batch is kept. Update
// is a compare-and-set on Version and bumps it on success.
type TicketRepository interface {
	CreateAll(ctx context.Context, tickets []*Ticket) error
	Update(ctx context.Context, t *Ticket) error
	FindByID(ctx context.Context, id TicketID) (*Ticket, error)
	ListByOrder(ctx context.Context, orderID OrderID) ([]Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]Ticket, error)
}

type MenuCategoryRepo interface {
	Create(ctx context.Context, c *MenuCategory) error
	Get(ctx context.Context, id uuid.UUID) (*MenuCategory, error)
}
