package kitchen

import (
	"time"

	"github.com/appetiteclub/appetite/pkg/enums/kitchenstatus"
	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

type TicketID = uuid.UUID
type OrderID = uuid.UUID

// Ticket is the kitchen display work item for an accepted order. Items are a
// snapshot taken at dispatch; later menu edits never reach an in-flight ticket.
type Ticket struct {
	ID         TicketID     `bson:"_id" json:"id"`
	TenantID   string       `bson:"tenant_id" json:"tenant_id"`
	LocationID string       `bson:"location_id" json:"location_id"`
	OrderID    OrderID      `bson:"order_id" json:"order_id"`
	Station    string       `bson:"station" json:"station"`
	Status     string       `bson:"status" json:"status"`
	Priority   bool         `bson:"priority" json:"priority"`
	Items      []TicketItem `bson:"items" json:"items"`
	// OrderStations lists every station the order was split into at dispatch.
	OrderStations []string `bson:"order_stations,omitempty" json:"order_stations,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	StartedAt *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	ReadyAt   *time.Time `bson:"ready_at,omitempty" json:"ready_at,omitempty"`
	BumpedAt  *time.Time `bson:"bumped_at,omitempty" json:"bumped_at,omitempty"`

	Version int `bson:"version" json:"version"`
}

type TicketItem struct {
	MenuItemID uuid.UUID `bson:"menu_item_id" json:"menu_item_id"`
	Name       string    `bson:"name" json:"name"`
	Quantity   int       `bson:"quantity" json:"quantity"`
	Options    []string  `bson:"options,omitempty" json:"options,omitempty"`
	Station    string    `bson:"station" json:"station"`
}

func (t *Ticket) GetID() uuid.UUID {
	return t.ID
}

func (t *Ticket) ResourceType() string {
	return "ticket"
}

func NewTicket(tenantID, locationID string, orderID OrderID, station string) *Ticket {
	now := time.Now()
	return &Ticket{
		ID:         apt.GenerateNewID(),
		TenantID:   tenantID,
		LocationID: locationID,
		OrderID:    orderID,
		Station:    station,
		Status:     kitchenstatus.Statuses.Queued.Code(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// stamp records the entry time of status once.
func (t *Ticket) stamp(status string, at time.Time) {
	switch status {
	case kitchenstatus.Statuses.Cooking.Code():
		if t.StartedAt == nil {
			t.StartedAt = &at
		}
	case kitchenstatus.Statuses.Ready.Code():
		if t.ReadyAt == nil {
			t.ReadyAt = &at
		}
	case kitchenstatus.Statuses.Bumped.Code():
		if t.BumpedAt == nil {
			t.BumpedAt = &at
		}
	}
}

// MenuCategory is the slice of the menu the dispatcher needs for routing.
type MenuCategory struct {
	ID       uuid.UUID `bson:"_id" json:"id"`
	TenantID string    `bson:"tenant_id" json:"tenant_id"`
	Name     string    `bson:"name" json:"name"`
}
