package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/event"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
)

// KitchenTicketSubscriber applies order advance requests raised by ticket
// progress. Returning an error asks the transport to redeliver.
type KitchenTicketSubscriber struct {
	subscriber events.Subscriber
	lifecycle  *Lifecycle
	logger     apt.Logger
}

func NewKitchenTicketSubscriber(sub events.Subscriber, lifecycle *Lifecycle, logger apt.Logger) *KitchenTicketSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &KitchenTicketSubscriber{
		subscriber: sub,
		lifecycle:  lifecycle,
		logger:     logger,
	}
}

func (s *KitchenTicketSubscriber) Start(ctx context.Context) error {
	s.log().Info("starting kitchen ticket subscriber", "topic", event.OrderAdvanceTopic)
	if s.subscriber == nil {
		return fmt.Errorf("kitchen ticket subscriber not configured")
	}
	return s.subscriber.Subscribe(ctx, event.OrderAdvanceTopic, s.handleEvent)
}

func (s *KitchenTicketSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.KitchenOrderAdvanceEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.log().Info("invalid order advance event", "error", err)
		return nil
	}

	if evt.EventType != event.EventKitchenOrderAdvanceRequest {
		s.log().Debug("unknown kitchen event type", "event_type", evt.EventType)
		return nil
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		s.log().Info("invalid order_id in advance event", "order_id", evt.OrderID)
		return nil
	}

	order, err := s.lifecycle.AdvanceFromKitchen(ctx, evt.TenantID, orderID, evt.TargetStatus)
	switch {
	case err == nil:
		s.log().Debug("order advanced from kitchen", "order_id", orderID.String(), "status", order.Status, "ticket_id", evt.TicketID)
		return nil
	case errors.Is(err, ErrInvalidTransition):
		s.log().Info("kitchen advance rejected", "order_id", orderID.String(), "target", evt.TargetStatus, "error", err)
		return nil
	case errors.Is(err, pkg.ErrNotFound):
		s.log().Info("order for kitchen advance not found", "order_id", orderID.String())
		return nil
	default:
		s.log().Error("cannot advance order from kitchen", "order_id", orderID.String(), "error", err)
		return err
	}
}

func (s *KitchenTicketSubscriber) log() apt.Logger {
	return s.logger.With("component", "KitchenTicketSubscriber")
}
