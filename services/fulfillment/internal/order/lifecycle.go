package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/enums/orderstatus"
	"github.com/appetiteclub/appetite/pkg/event"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
)

const (
	defaultMaxAttempts    = 3
	defaultPublishTimeout = 2 * time.Second
)

// kitchenPath is the part of the order machine driven by ticket progress.
var kitchenPath = []string{
	orderstatus.Statuses.Accepted.Code(),
	orderstatus.Statuses.InKitchen.Code(),
	orderstatus.Statuses.Ready.Code(),
}

// Lifecycle owns every order status change. Side effects (status events and
// ticket dispatch requests) are published after the write commits and never
// undo it.
type Lifecycle struct {
	repo           OrderRepo
	publisher      events.Publisher
	logger         apt.Logger
	now            func() time.Time
	maxAttempts    int
	publishTimeout time.Duration
}

func NewLifecycle(repo OrderRepo, publisher events.Publisher, logger apt.Logger) *Lifecycle {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Lifecycle{
		repo:           repo,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
		maxAttempts:    defaultMaxAttempts,
		publishTimeout: defaultPublishTimeout,
	}
}

// RequestTransition moves o to newStatus and persists it. Requesting the
// current status is a no-op. On a failed write o is left as it was.
func (l *Lifecycle) RequestTransition(ctx context.Context, o *Order, newStatus string) error {
	if o.Status == newStatus {
		return nil
	}
	if !orderstatus.CanTransition(o.Status, newStatus) {
		return &TransitionError{From: o.Status, To: newStatus}
	}

	previous := o.Status
	previousUpdatedAt := o.UpdatedAt
	now := l.now()

	o.Status = newStatus
	stamped := o.Stamp(newStatus, now)
	o.UpdatedAt = now

	if err := l.repo.Save(ctx, o); err != nil {
		o.Status = previous
		o.UpdatedAt = previousUpdatedAt
		if stamped {
			delete(o.Timestamps, orderstatus.TimestampField(newStatus))
		}
		return fmt.Errorf("save order %s: %w", o.ID, err)
	}

	l.log().Info("order status changed", "order_id", o.ID.String(), "from", previous, "to", newStatus)
	l.afterTransition(ctx, o, previous)
	return nil
}

// Transition loads the tenant's order and applies newStatus, retrying with a
// fresh copy when a concurrent writer wins the compare-and-set.
func (l *Lifecycle) Transition(ctx context.Context, tenantID string, orderID uuid.UUID, newStatus string) (*Order, error) {
	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		o, err := l.load(ctx, tenantID, orderID)
		if err != nil {
			return nil, err
		}

		err = l.RequestTransition(ctx, o, newStatus)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, pkg.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		l.log().Debug("order version conflict, retrying", "order_id", orderID.String(), "attempt", attempt)
	}
	return nil, lastErr
}

// AdvanceFromKitchen moves an order along accepted -> in_kitchen -> ready up to
// target because a ticket progressed. Orders already at or past target are
// left alone; every step goes through RequestTransition.
func (l *Lifecycle) AdvanceFromKitchen(ctx context.Context, tenantID string, orderID uuid.UUID, target string) (*Order, error) {
	targetIdx := indexOf(kitchenPath, target)
	if targetIdx < 0 {
		return nil, fmt.Errorf("kitchen cannot drive order to %q: %w", target, ErrInvalidTransition)
	}

	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		o, err := l.load(ctx, tenantID, orderID)
		if err != nil {
			return nil, err
		}

		err = l.walk(ctx, o, targetIdx)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, pkg.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (l *Lifecycle) walk(ctx context.Context, o *Order, targetIdx int) error {
	current := indexOf(kitchenPath, o.Status)
	if current < 0 {
		if o.Status == orderstatus.Statuses.Served.Code() || o.Status == orderstatus.Statuses.Completed.Code() {
			return nil
		}
		return &TransitionError{From: o.Status, To: kitchenPath[targetIdx]}
	}

	for i := current + 1; i <= targetIdx; i++ {
		if err := l.RequestTransition(ctx, o, kitchenPath[i]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lifecycle) load(ctx context.Context, tenantID string, orderID uuid.UUID) (*Order, error) {
	o, err := l.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || (tenantID != "" && o.TenantID != tenantID) {
		return nil, fmt.Errorf("order %s: %w", orderID, pkg.ErrNotFound)
	}
	return o, nil
}

func (l *Lifecycle) afterTransition(ctx context.Context, o *Order, previous string) {
	if l.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.publishTimeout)
	defer cancel()

	now := l.now().UTC()
	l.publish(pubCtx, event.OrderStatusTopic, event.OrderStatusChangedEvent{
		EventType:      event.EventOrderStatusChanged,
		OccurredAt:     now,
		OrderID:        o.ID.String(),
		TenantID:       o.TenantID,
		LocationID:     o.LocationID,
		PreviousStatus: previous,
		NewStatus:      o.Status,
		Version:        o.Version,
	})

	if o.Status != orderstatus.Statuses.Accepted.Code() {
		return
	}

	l.publish(pubCtx, event.OrderDispatchTopic, event.OrderDispatchRequestedEvent{
		EventType:  event.EventOrderDispatchRequested,
		OccurredAt: now,
		OrderID:    o.ID.String(),
		TenantID:   o.TenantID,
		LocationID: o.LocationID,
	})
}

func (l *Lifecycle) publish(ctx context.Context, topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		l.log().Error("cannot marshal order event", "topic", topic, "error", err)
		return
	}
	if err := l.publisher.Publish(ctx, topic, data); err != nil {
		l.log().Error("cannot publish order event", "topic", topic, "error", err)
	}
}

func (l *Lifecycle) log() apt.Logger {
	return l.logger.With("component", "OrderLifecycle")
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
