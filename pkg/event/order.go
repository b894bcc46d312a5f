package event

import "time"

const (
	OrderStatusTopic        = "orders.status"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderStatusChangedEvent is published after an order status write commits.
// The kitchen consumes it to dispatch tickets for accepted orders.
type OrderStatusChangedEvent struct {
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	OrderID        string    `json:"order_id"`
	TenantID       string    `json:"tenant_id"`
	LocationID     string    `json:"location_id,omitempty"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Version        int       `json:"version"`
}

const (
	OrderDispatchTopic          = "fulfillment.dispatch"
	EventOrderDispatchRequested = "order.dispatch_requested"
)

// OrderDispatchRequestedEvent asks the kitchen to materialize tickets for an
// order that has just been accepted. Delivery is at-least-once.
type OrderDispatchRequestedEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    string    `json:"order_id"`
	TenantID   string    `json:"tenant_id"`
	LocationID string    `json:"location_id,omitempty"`
}
