package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/event"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/kitchen"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/order"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
)

// DispatchSubscriber materializes tickets for orders that entered accepted.
// A returned error asks the transport to redeliver; the dispatcher skips
// stations that are already ticketed, so redelivery is safe.
type DispatchSubscriber struct {
	subscriber events.Subscriber
	orders     order.OrderRepo
	dispatcher *kitchen.Dispatcher
	logger     apt.Logger
}

func NewDispatchSubscriber(
	subscriber events.Subscriber,
	orders order.OrderRepo,
	dispatcher *kitchen.Dispatcher,
	logger apt.Logger,
) *DispatchSubscriber {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &DispatchSubscriber{
		subscriber: subscriber,
		orders:     orders,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (s *DispatchSubscriber) Start(ctx context.Context) error {
	if s.subscriber == nil {
		return fmt.Errorf("dispatch subscriber not configured")
	}

	s.logger.Info("Starting DispatchSubscriber", "topic", event.OrderDispatchTopic)
	if err := s.subscriber.Subscribe(ctx, event.OrderDispatchTopic, s.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event.OrderDispatchTopic, err)
	}
	return nil
}

func (s *DispatchSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.OrderDispatchRequestedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Error("invalid dispatch request", "error", err)
		return nil
	}
	if evt.EventType != event.EventOrderDispatchRequested {
		s.logger.Debug("unknown dispatch event type", "event_type", evt.EventType)
		return nil
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		s.logger.Error("invalid order_id in dispatch request", "order_id", evt.OrderID)
		return nil
	}

	o, err := s.orders.Get(ctx, orderID)
	if errors.Is(err, pkg.ErrNotFound) || (err == nil && o == nil) {
		s.logger.Info("order for dispatch not found", "order_id", evt.OrderID)
		return nil
	}
	if err != nil {
		s.logger.Error("cannot load order for dispatch", "order_id", evt.OrderID, "error", err)
		return err
	}

	return s.dispatch(ctx, o)
}

func (s *DispatchSubscriber) dispatch(ctx context.Context, o *order.Order) error {
	tickets, err := s.dispatcher.Dispatch(ctx, o)
	switch {
	case err == nil:
		s.logger.Info("order dispatched to kitchen", "order_id", o.ID.String(), "tickets", len(tickets))
		return nil
	case errors.Is(err, kitchen.ErrOrderNotAccepted):
		// The order moved on before the request was handled. Tickets for it
		// are only created while it is accepted.
		s.logger.Info("order left accepted before dispatch", "order_id", o.ID.String(), "status", o.Status)
		return nil
	default:
		s.logger.Error("dispatch failed, will be redelivered", "order_id", o.ID.String(), "error", err)
		return err
	}
}
