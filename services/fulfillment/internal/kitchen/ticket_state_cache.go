package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/appetiteclub/appetite/pkg/enums/kitchenstatus"
	"github.com/appetiteclub/appetite/pkg/event"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
)

// TicketStateCache is the station board: active tickets indexed by station.
// It is warmed from the store and kept current from kitchen.tickets events,
// so every replica converges on the same board.
type TicketStateCache struct {
	mu        sync.RWMutex
	tickets   map[uuid.UUID]*Ticket
	byStation map[string][]uuid.UUID

	repo   TicketRepository
	logger apt.Logger
}

func NewTicketStateCache(repo TicketRepository, logger apt.Logger) *TicketStateCache {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &TicketStateCache{
		tickets:   make(map[uuid.UUID]*Ticket),
		byStation: make(map[string][]uuid.UUID),
		repo:      repo,
		logger:    logger,
	}
}

// Warm loads active tickets from the store. A failing store leaves the board
// empty rather than failing startup.
func (c *TicketStateCache) Warm(ctx context.Context) error {
	if c.repo == nil {
		c.logger.Info("ticket repository not configured, board remains empty")
		return nil
	}

	var loaded int
	for _, status := range kitchenstatus.All {
		if !kitchenstatus.IsActive(status.Code()) {
			continue
		}
		tickets, err := c.repo.List(ctx, TicketFilter{Status: status.Code()})
		if err != nil {
			c.logger.Info("cannot warm station board", "status", status.Code(), "error", err)
			return nil
		}
		for i := range tickets {
			c.Set(&tickets[i])
		}
		loaded += len(tickets)
	}

	c.logger.Info("station board warmed", "count", loaded)
	return nil
}

// Start keeps the board current from ticket events.
func (c *TicketStateCache) Start(ctx context.Context, sub events.Subscriber) error {
	if sub == nil {
		return fmt.Errorf("station board subscriber not configured")
	}
	return sub.Subscribe(ctx, event.KitchenTicketsTopic, c.handleEvent)
}

func (c *TicketStateCache) handleEvent(ctx context.Context, msg []byte) error {
	var meta event.KitchenTicketEventMetadata
	if err := json.Unmarshal(msg, &meta); err != nil {
		c.logger.Info("invalid kitchen ticket event", "error", err)
		return nil
	}

	switch meta.EventType {
	case event.EventKitchenTicketCreated, event.EventKitchenTicketStatusChange, event.EventKitchenTicketPriorityChange:
	default:
		return nil
	}

	id, err := uuid.Parse(meta.TicketID)
	if err != nil {
		c.logger.Info("invalid ticket_id in kitchen event", "ticket_id", meta.TicketID)
		return nil
	}

	if c.repo == nil {
		return nil
	}
	ticket, err := c.repo.FindByID(ctx, id)
	if err != nil {
		c.logger.Info("cannot refresh ticket on board", "ticket_id", id.String(), "error", err)
		return nil
	}
	c.Set(ticket)
	return nil
}

// Set adds or replaces a ticket. Tickets that left the active states are
// dropped from the board. Stale versions never replace newer ones.
func (c *TicketStateCache) Set(ticket *Ticket) {
	if ticket == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.tickets[ticket.ID]; ok {
		if old.Version > ticket.Version {
			return
		}
		c.removeLocked(old)
	}

	if !kitchenstatus.IsActive(ticket.Status) {
		return
	}

	cp := *ticket
	c.tickets[ticket.ID] = &cp
	c.byStation[ticket.Station] = append(c.byStation[ticket.Station], ticket.ID)
}

// ByStation returns the tenant's active tickets for station, priority
// tickets first and then oldest first.
func (c *TicketStateCache) ByStation(tenantID, station string) []Ticket {
	c.mu.RLock()
	result := make([]Ticket, 0, len(c.byStation[station]))
	for _, id := range c.byStation[station] {
		if t := c.tickets[id]; t != nil && t.TenantID == tenantID {
			result = append(result, *t)
		}
	}
	c.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (c *TicketStateCache) Get(id uuid.UUID) (Ticket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickets[id]
	if !ok {
		return Ticket{}, false
	}
	return *t, true
}

func (c *TicketStateCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tickets)
}

func (c *TicketStateCache) removeLocked(t *Ticket) {
	ids := c.byStation[t.Station]
	for i, id := range ids {
		if id == t.ID {
			c.byStation[t.Station] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	delete(c.tickets, t.ID)
}
