package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/appetiteclub/appetite/services/fulfillment/internal/kitchen"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/order"
	"github.com/appetiteclub/apt"
)

const (
	DefaultReconcileInterval = time.Minute
	DefaultReconcileGrace    = 30 * time.Second
)

// Reconciler re-dispatches accepted orders whose dispatch request was lost,
// for example because the broker was unreachable when the order was accepted.
type Reconciler struct {
	orders     order.OrderRepo
	dispatcher *kitchen.Dispatcher
	interval   time.Duration
	grace      time.Duration
	logger     apt.Logger
	now        func() time.Time

	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewReconciler(orders order.OrderRepo, dispatcher *kitchen.Dispatcher, interval, grace time.Duration, logger apt.Logger) *Reconciler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	if grace < 0 {
		grace = DefaultReconcileGrace
	}
	return &Reconciler{
		orders:     orders,
		dispatcher: dispatcher,
		interval:   interval,
		grace:      grace,
		logger:     logger,
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// RunOnce dispatches every accepted order older than the grace period that
// has no tickets yet and returns how many tickets were created.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	orders, err := r.orders.ListStranded(ctx, r.now().Add(-r.grace))
	if err != nil {
		return 0, err
	}

	var created int
	for _, o := range orders {
		tickets, err := r.dispatcher.Dispatch(ctx, o)
		if err != nil {
			r.logger.Info("reconcile dispatch failed", "order_id", o.ID.String(), "error", err)
			continue
		}
		if len(tickets) > 0 {
			r.logger.Info("reconciled missing tickets", "order_id", o.ID.String(), "tickets", len(tickets))
		}
		created += len(tickets)
	}
	return created, nil
}

func (r *Reconciler) Start(ctx context.Context) error {
	if r.started.CompareAndSwap(false, true) {
		go r.loop()
	}
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.once.Do(func() { close(r.stop) })
	if !r.started.Load() {
		return nil
	}
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (r *Reconciler) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.interval)
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("reconcile pass failed", "error", err)
			}
			cancel()
		case <-r.stop:
			return
		}
	}
}
