package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/enums/orderstatus"
	"github.com/appetiteclub/appetite/pkg/enums/station"
	"github.com/appetiteclub/appetite/pkg/event"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/order"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StationMode decides how an order's items are split into tickets.
type StationMode string

const (
	// StationModeSingle creates one ticket on the default station and keeps the
	// routed station on every item.
	StationModeSingle StationMode = "single"
	// StationModePerStation creates one ticket per routed station.
	StationModePerStation StationMode = "per_station"
)

const categoryLookupLimit = 8

func ParseStationMode(s string) (StationMode, error) {
	switch StationMode(s) {
	case "", StationModeSingle:
		return StationModeSingle, nil
	case StationModePerStation:
		return StationModePerStation, nil
	default:
		return "", fmt.Errorf("unknown station mode %q: %w", s, pkg.ErrConfig)
	}
}

type DispatcherDeps struct {
	Tickets    TicketRepository
	Items      order.OrderItemRepo
	Categories MenuCategoryRepo
	Publisher  events.Publisher
	Mode       StationMode
}

// Dispatcher turns an accepted order into queued tickets. It is safe to run
// more than once for the same order: stations that already have a ticket are
// skipped.
type Dispatcher struct {
	tickets    TicketRepository
	items      order.OrderItemRepo
	categories MenuCategoryRepo
	publisher  events.Publisher
	mode       StationMode
	logger     apt.Logger
}

func NewDispatcher(deps DispatcherDeps, logger apt.Logger) *Dispatcher {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	mode := deps.Mode
	if mode == "" {
		mode = StationModeSingle
	}
	return &Dispatcher{
		tickets:    deps.Tickets,
		items:      deps.Items,
		categories: deps.Categories,
		publisher:  deps.Publisher,
		mode:       mode,
		logger:     logger,
	}
}

// Dispatch creates the tickets for o and returns the ones created by this call.
func (d *Dispatcher) Dispatch(ctx context.Context, o *order.Order) ([]*Ticket, error) {
	if o.Status != orderstatus.Statuses.Accepted.Code() {
		return nil, fmt.Errorf("dispatch order %s in %s: %w", o.ID, o.Status, ErrOrderNotAccepted)
	}

	items, err := d.items.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("load items of order %s: %w", o.ID, err)
	}
	if len(items) == 0 {
		d.log().Info("accepted order has no items, nothing to dispatch", "order_id", o.ID.String())
		return nil, nil
	}

	names, err := d.categoryNames(ctx, items)
	if err != nil {
		return nil, err
	}

	existing, err := d.tickets.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("load tickets of order %s: %w", o.ID, err)
	}
	ticketed := make(map[string]bool, len(existing))
	for _, t := range existing {
		ticketed[t.Station] = true
	}

	batch := d.group(o, items, names)
	var missing []*Ticket
	for _, ticket := range batch {
		if !ticketed[ticket.Station] {
			missing = append(missing, ticket)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	if err := d.tickets.CreateAll(ctx, missing); err != nil {
		if errors.Is(err, ErrTicketExists) {
			d.log().Info("order dispatched concurrently, skipping", "order_id", o.ID.String())
			return nil, nil
		}
		return nil, fmt.Errorf("create tickets for order %s: %w", o.ID, err)
	}

	for _, ticket := range missing {
		d.log().Info("ticket dispatched", "order_id", o.ID.String(), "ticket_id", ticket.ID.String(), "station", ticket.Station, "items", len(ticket.Items))
		d.publishCreated(ctx, ticket)
	}
	return missing, nil
}

// group builds the tickets for items in the order they appear on the order.
func (d *Dispatcher) group(o *order.Order, items []*order.OrderItem, names map[uuid.UUID]string) []*Ticket {
	var tickets []*Ticket
	byStation := make(map[string]*Ticket)

	for _, item := range items {
		routed := station.Route(names[item.CategoryID]).Code()

		key := station.Stations.Default.Code()
		if d.mode == StationModePerStation {
			key = routed
		}

		ticket, ok := byStation[key]
		if !ok {
			ticket = NewTicket(o.TenantID, o.LocationID, o.ID, key)
			byStation[key] = ticket
			tickets = append(tickets, ticket)
		}

		ticket.Items = append(ticket.Items, TicketItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			Options:    append([]string(nil), item.Options...),
			Station:    routed,
		})
	}

	stations := make([]string, 0, len(tickets))
	for _, t := range tickets {
		stations = append(stations, t.Station)
	}
	for _, t := range tickets {
		t.OrderStations = stations
	}
	return tickets
}

// categoryNames resolves the distinct categories of items concurrently.
// Missing categories route to the default station.
func (d *Dispatcher) categoryNames(ctx context.Context, items []*order.OrderItem) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string)
	if d.categories == nil {
		return names, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(categoryLookupLimit)

	seen := make(map[uuid.UUID]bool)
	for _, item := range items {
		id := item.CategoryID
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true

		g.Go(func() error {
			category, err := d.categories.Get(gctx, id)
			if errors.Is(err, pkg.ErrNotFound) || (err == nil && category == nil) {
				d.log().Debug("menu category not found, routing to default", "category_id", id.String())
				return nil
			}
			if err != nil {
				return fmt.Errorf("load menu category %s: %w", id, err)
			}
			mu.Lock()
			names[id] = category.Name
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

func (d *Dispatcher) publishCreated(ctx context.Context, t *Ticket) {
	if d.publisher == nil {
		return
	}

	payload := event.KitchenTicketCreatedEvent{
		KitchenTicketEventMetadata: metadataFor(t, event.EventKitchenTicketCreated, time.Now().UTC()),
		Status:                     t.Status,
		ItemCount:                  len(t.Items),
		Priority:                   t.Priority,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		d.log().Error("cannot marshal ticket created event", "error", err)
		return
	}
	if err := d.publisher.Publish(ctx, event.KitchenTicketsTopic, data); err != nil {
		d.log().Error("cannot publish ticket created event", "ticket_id", t.ID.String(), "error", err)
	}
}

func (d *Dispatcher) log() apt.Logger {
	return d.logger.With("component", "Dispatcher")
}

func metadataFor(t *Ticket, eventType string, at time.Time) event.KitchenTicketEventMetadata {
	return event.KitchenTicketEventMetadata{
		EventType:  eventType,
		OccurredAt: at,
		TicketID:   t.ID.String(),
		OrderID:    t.OrderID.String(),
		TenantID:   t.TenantID,
		LocationID: t.LocationID,
		Station:    t.Station,
	}
}
