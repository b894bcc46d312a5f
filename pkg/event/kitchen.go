package event

import "time"

const (
	KitchenTicketsTopic              = "kitchen.tickets"
	EventKitchenTicketCreated        = "kitchen.ticket.created"
	EventKitchenTicketStatusChange   = "kitchen.ticket.status_changed"
	EventKitchenTicketPriorityChange = "kitchen.ticket.priority_changed"
	EventKitchenOrderAdvanceRequest  = "kitchen.order.advance_requested"

	// OrderAdvanceTopic carries ticket-driven order advance requests.
	OrderAdvanceTopic = "fulfillment.order_advance"
)

type KitchenTicketEventMetadata struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	TicketID   string    `json:"ticket_id"`
	OrderID    string    `json:"order_id"`
	TenantID   string    `json:"tenant_id"`
	LocationID string    `json:"location_id,omitempty"`
	Station    string    `json:"station"`
}

type KitchenTicketCreatedEvent struct {
	KitchenTicketEventMetadata
	Status    string `json:"status"`
	ItemCount int    `json:"item_count"`
	Priority  bool   `json:"priority"`
}

type KitchenTicketStatusChangedEvent struct {
	KitchenTicketEventMetadata
	NewStatus      string     `json:"new_status"`
	PreviousStatus string     `json:"previous_status"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ReadyAt        *time.Time `json:"ready_at,omitempty"`
	BumpedAt       *time.Time `json:"bumped_at,omitempty"`
}

type KitchenTicketPriorityChangedEvent struct {
	KitchenTicketEventMetadata
	Priority bool `json:"priority"`
}

// KitchenOrderAdvanceEvent asks the order side to move an order forward
// because one of its tickets progressed. At most one is emitted per ticket step.
type KitchenOrderAdvanceEvent struct {
	KitchenTicketEventMetadata
	TargetStatus string `json:"target_status"`
}
