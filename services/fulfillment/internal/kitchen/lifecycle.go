package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/enums/kitchenstatus"
	"github.com/appetiteclub/appetite/pkg/enums/orderstatus"
	"github.com/appetiteclub/appetite/pkg/event"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
)

const (
	defaultMaxAttempts    = 3
	defaultPublishTimeout = 2 * time.Second
)

// TicketLifecycle owns ticket status changes. Reaching cooking or ready asks
// the order side to follow; that request is best effort and never undoes the
// ticket write.
type TicketLifecycle struct {
	repo           TicketRepository
	publisher      events.Publisher
	mode           StationMode
	logger         apt.Logger
	now            func() time.Time
	maxAttempts    int
	publishTimeout time.Duration
}

func NewTicketLifecycle(repo TicketRepository, publisher events.Publisher, mode StationMode, logger apt.Logger) *TicketLifecycle {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if mode == "" {
		mode = StationModeSingle
	}
	return &TicketLifecycle{
		repo:           repo,
		publisher:      publisher,
		mode:           mode,
		logger:         logger,
		now:            time.Now,
		maxAttempts:    defaultMaxAttempts,
		publishTimeout: defaultPublishTimeout,
	}
}

// AdvanceTicket moves t one step along queued -> cooking -> ready -> bumped.
func (l *TicketLifecycle) AdvanceTicket(ctx context.Context, t *Ticket, newStatus string) error {
	if !kitchenstatus.CanAdvance(t.Status, newStatus) {
		return &TicketTransitionError{From: t.Status, To: newStatus}
	}

	before := *t
	now := l.now()

	t.Status = newStatus
	t.stamp(newStatus, now)
	t.UpdatedAt = now

	if err := l.repo.Update(ctx, t); err != nil {
		*t = before
		return fmt.Errorf("save ticket %s: %w", t.ID, err)
	}

	l.log().Info("ticket status changed", "ticket_id", t.ID.String(), "from", before.Status, "to", newStatus)
	l.afterAdvance(ctx, t, before.Status)
	return nil
}

// Advance loads the tenant's ticket and applies newStatus, retrying with a
// fresh copy on a lost compare-and-set.
func (l *TicketLifecycle) Advance(ctx context.Context, tenantID string, id TicketID, newStatus string) (*Ticket, error) {
	return l.withTicket(ctx, tenantID, id, func(t *Ticket) error {
		return l.AdvanceTicket(ctx, t, newStatus)
	})
}

// SetPriority flags a ticket for display ordering. Bumped tickets are closed.
func (l *TicketLifecycle) SetPriority(ctx context.Context, tenantID string, id TicketID, priority bool) (*Ticket, error) {
	return l.withTicket(ctx, tenantID, id, func(t *Ticket) error {
		if kitchenstatus.IsTerminal(t.Status) {
			return fmt.Errorf("ticket %s: %w", t.ID, ErrTicketClosed)
		}
		if t.Priority == priority {
			return nil
		}

		previous, previousUpdatedAt := t.Priority, t.UpdatedAt
		t.Priority = priority
		t.UpdatedAt = l.now()
		if err := l.repo.Update(ctx, t); err != nil {
			t.Priority, t.UpdatedAt = previous, previousUpdatedAt
			return fmt.Errorf("save ticket %s: %w", t.ID, err)
		}

		pubCtx, cancel := l.publishContext(ctx)
		defer cancel()
		l.publish(pubCtx, event.KitchenTicketsTopic, event.KitchenTicketPriorityChangedEvent{
			KitchenTicketEventMetadata: metadataFor(t, event.EventKitchenTicketPriorityChange, t.UpdatedAt.UTC()),
			Priority:                   t.Priority,
		})
		return nil
	})
}

func (l *TicketLifecycle) withTicket(ctx context.Context, tenantID string, id TicketID, apply func(t *Ticket) error) (*Ticket, error) {
	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		t, err := l.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if t == nil || (tenantID != "" && t.TenantID != tenantID) {
			return nil, fmt.Errorf("ticket %s: %w", id, pkg.ErrNotFound)
		}

		err = apply(t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, pkg.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (l *TicketLifecycle) afterAdvance(ctx context.Context, t *Ticket, previous string) {
	pubCtx, cancel := l.publishContext(ctx)
	defer cancel()

	l.publish(pubCtx, event.KitchenTicketsTopic, event.KitchenTicketStatusChangedEvent{
		KitchenTicketEventMetadata: metadataFor(t, event.EventKitchenTicketStatusChange, t.UpdatedAt.UTC()),
		NewStatus:                  t.Status,
		PreviousStatus:             previous,
		StartedAt:                  t.StartedAt,
		ReadyAt:                    t.ReadyAt,
		BumpedAt:                   t.BumpedAt,
	})

	var target string
	switch t.Status {
	case kitchenstatus.Statuses.Cooking.Code():
		target = orderstatus.Statuses.InKitchen.Code()
	case kitchenstatus.Statuses.Ready.Code():
		if !l.lastToBeReady(pubCtx, t) {
			return
		}
		target = orderstatus.Statuses.Ready.Code()
	default:
		return
	}

	l.publish(pubCtx, event.OrderAdvanceTopic, event.KitchenOrderAdvanceEvent{
		KitchenTicketEventMetadata: metadataFor(t, event.EventKitchenOrderAdvanceRequest, t.UpdatedAt.UTC()),
		TargetStatus:               target,
	})
}

// lastToBeReady reports whether every station t's order was split into has
// a ticket that reached ready. With a single ticket per order that is always
// the case.
func (l *TicketLifecycle) lastToBeReady(ctx context.Context, t *Ticket) bool {
	if l.mode != StationModePerStation {
		return true
	}

	siblings, err := l.repo.ListByOrder(ctx, t.OrderID)
	if err != nil {
		l.log().Error("cannot check sibling tickets, order stays as is", "order_id", t.OrderID.String(), "error", err)
		return false
	}

	done := map[string]bool{t.Station: true}
	for _, s := range siblings {
		if s.ID == t.ID {
			continue
		}
		if s.Status == kitchenstatus.Statuses.Queued.Code() || s.Status == kitchenstatus.Statuses.Cooking.Code() {
			return false
		}
		done[s.Station] = true
	}

	for _, station := range t.OrderStations {
		if !done[station] {
			l.log().Error("order has a station without ticket, order stays as is", "order_id", t.OrderID.String(), "station", station)
			return false
		}
	}
	return true
}

func (l *TicketLifecycle) publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), l.publishTimeout)
}

func (l *TicketLifecycle) publish(ctx context.Context, topic string, payload interface{}) {
	if l.publisher == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		l.log().Error("cannot marshal kitchen event", "topic", topic, "error", err)
		return
	}
	if err := l.publisher.Publish(ctx, topic, data); err != nil {
		l.log().Error("cannot publish kitchen event", "topic", topic, "error", err)
	}
}

func (l *TicketLifecycle) log() apt.Logger {
	return l.logger.With("component", "TicketLifecycle")
}
