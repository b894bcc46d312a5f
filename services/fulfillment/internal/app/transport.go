package app

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/event"
	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
)

const (
	taskStreamName  = "FULFILLMENT_TASKS"
	taskSubjects    = "fulfillment.>"
	taskTopicPrefix = "fulfillment."
	workerQueue     = "fulfillment-workers"
)

// transport groups the publishers and subscribers the service runs on.
// Dispatch and Advance carry the work queues; Board receives every ticket
// event so each replica can keep its station board current.
type transport struct {
	Publisher aptevents.Publisher
	Dispatch  aptevents.Subscriber
	Advance   aptevents.Subscriber
	Board     aptevents.Subscriber
	closers   []func() error
}

func (t *transport) Close(ctx context.Context) error {
	var first error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newTransport picks the broker setup from config: JetStream work queues
// when nats.stream.enabled is set, core NATS otherwise, and an in-process
// bus when no NATS url is configured.
func newTransport(ctx context.Context, config *apt.Config, logger apt.Logger) (*transport, error) {
	natsURL, _ := config.GetString("nats.url")
	if natsURL == "" {
		logger.Info("No NATS url configured, using in-process event bus")
		bus := pkg.NewLocalBus(defaultBusAttempts, defaultBusBackoff, logger)
		return &transport{
			Publisher: bus,
			Dispatch:  bus,
			Advance:   bus,
			Board:     bus,
			closers:   []func() error{bus.Close},
		}, nil
	}

	t := &transport{}

	core, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		return nil, err
	}
	t.closers = append(t.closers, core.Close)

	board, err := pkg.NewNATSSubscriber(natsURL, "", logger)
	if err != nil {
		_ = t.Close(ctx)
		return nil, err
	}
	t.closers = append(t.closers, board.Close)
	t.Board = board

	streamEnabled, _ := config.GetString("nats.stream.enabled")
	if streamEnabled != "true" {
		workers, err := pkg.NewNATSSubscriber(natsURL, workerQueue, logger)
		if err != nil {
			_ = t.Close(ctx)
			return nil, err
		}
		t.closers = append(t.closers, workers.Close)
		t.Publisher = core
		t.Dispatch = workers
		t.Advance = workers
		return t, nil
	}

	dispatch, err := newTaskStream(ctx, natsURL, "fulfillment-dispatch", event.OrderDispatchTopic, logger)
	if err != nil {
		_ = t.Close(ctx)
		return nil, err
	}
	t.closers = append(t.closers, dispatch.Close)

	advance, err := newTaskStream(ctx, natsURL, "fulfillment-order-advance", event.OrderAdvanceTopic, logger)
	if err != nil {
		_ = t.Close(ctx)
		return nil, err
	}
	t.closers = append(t.closers, advance.Close)

	t.Publisher = pkg.NewTopicPublisher(core).Route(taskTopicPrefix, dispatch)
	t.Dispatch = dispatch
	t.Advance = advance

	logger.Info("NATS stream initialized for fulfillment tasks", "stream", taskStreamName)
	return t, nil
}

func newTaskStream(ctx context.Context, natsURL, consumer, subject string, logger apt.Logger) (*pkg.NATSStream, error) {
	stream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
		URL:           natsURL,
		StreamName:    taskStreamName,
		Subjects:      []string{taskSubjects},
		ConsumerName:  consumer,
		FilterSubject: subject,
		MaxAge:        24 * time.Hour,
		MaxDeliver:    10,
		AckWait:       30 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot set up %s consumer: %w", consumer, err)
	}
	return stream, nil
}
