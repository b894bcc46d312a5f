package order

import (
	"time"

	"github.com/appetiteclub/appetite/pkg/enums/orderstatus"
	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
)

type Order struct {
	ID         uuid.UUID            `json:"id" bson:"_id"`
	TenantID   string               `json:"tenant_id" bson:"tenant_id"`
	LocationID string               `json:"location_id" bson:"location_id"`
	Status     string               `json:"status" bson:"status"`
	Timestamps map[string]time.Time `json:"timestamps" bson:"timestamps"`
	Version    int                  `json:"version" bson:"version"`
	CreatedAt  time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at" bson:"updated_at"`
}

func (o *Order) GetID() uuid.UUID {
	return o.ID
}

func (o *Order) ResourceType() string {
	return "order"
}

func (o *Order) SetID(id uuid.UUID) {
	o.ID = id
}

// NewOrder returns an order in placed, the status every order is created in.
func NewOrder(tenantID, locationID string) *Order {
	o := &Order{
		ID:         apt.GenerateNewID(),
		TenantID:   tenantID,
		LocationID: locationID,
		Status:     orderstatus.Statuses.Placed.Code(),
	}
	o.BeforeCreate()
	return o
}

func (o *Order) EnsureID() {
	if o.ID == uuid.Nil {
		o.ID = apt.GenerateNewID()
	}
}

func (o *Order) BeforeCreate() {
	o.EnsureID()
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Stamp(o.Status, now)
}

// Stamp records the entry time of status unless one is already recorded.
// Statuses without a timestamp slot are skipped.
func (o *Order) Stamp(status string, at time.Time) bool {
	field := orderstatus.TimestampField(status)
	if field == "" {
		return false
	}
	if o.Timestamps == nil {
		o.Timestamps = make(map[string]time.Time)
	}
	if _, set := o.Timestamps[field]; set {
		return false
	}
	o.Timestamps[field] = at
	return true
}

// TimestampOf returns the recorded entry time of status.
func (o *Order) TimestampOf(status string) (time.Time, bool) {
	field := orderstatus.TimestampField(status)
	if field == "" || o.Timestamps == nil {
		return time.Time{}, false
	}
	at, ok := o.Timestamps[field]
	return at, ok
}

// OrderItem is a line of an order. CategoryID is captured from the menu when
// the item is ordered and resolved to a category name at dispatch time.
type OrderItem struct {
	ID         uuid.UUID `json:"id" bson:"_id"`
	OrderID    uuid.UUID `json:"order_id" bson:"order_id"`
	MenuItemID uuid.UUID `json:"menu_item_id" bson:"menu_item_id"`
	Name       string    `json:"name" bson:"name"`
	CategoryID uuid.UUID `json:"category_id" bson:"category_id"`
	Quantity   int       `json:"quantity" bson:"quantity"`
	Options    []string  `json:"options,omitempty" bson:"options,omitempty"`
	Position   int       `json:"position" bson:"position"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

func (i *OrderItem) GetID() uuid.UUID {
	return i.ID
}

func (i *OrderItem) ResourceType() string {
	return "order-item"
}

func NewOrderItem(orderID uuid.UUID) *OrderItem {
	return &OrderItem{
		ID:        apt.GenerateNewID(),
		OrderID:   orderID,
		Quantity:  1,
		CreatedAt: time.Now(),
	}
}
