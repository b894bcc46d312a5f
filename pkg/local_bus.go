package pkg

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
)

// LocalBus is an in-process events.Publisher and events.Subscriber used when
// no NATS server is configured. Every delivery runs on its own goroutine and a
// failing handler is retried up to maxAttempts with linear backoff, so
// publishers never wait on handlers.
type LocalBus struct {
	mu          sync.RWMutex
	handlers    map[string][]events.HandlerFunc
	maxAttempts int
	backoff     time.Duration
	logger      apt.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewLocalBus(maxAttempts int, backoff time.Duration, logger apt.Logger) *LocalBus {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalBus{
		handlers:    make(map[string][]events.HandlerFunc),
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (b *LocalBus) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

func (b *LocalBus) Publish(ctx context.Context, topic string, msg []byte) error {
	b.mu.RLock()
	handlers := append([]events.HandlerFunc(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	data := append([]byte(nil), msg...)
	for _, h := range handlers {
		b.wg.Add(1)
		go b.deliver(topic, h, data)
	}
	return nil
}

func (b *LocalBus) deliver(topic string, handler events.HandlerFunc, msg []byte) {
	defer b.wg.Done()

	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		err := handler(b.ctx, msg)
		if err == nil {
			return
		}
		if attempt == b.maxAttempts {
			b.logger.Error("local bus delivery abandoned", "topic", topic, "attempts", attempt, "error", err)
			return
		}
		b.logger.Info("local bus delivery failed, retrying", "topic", topic, "attempt", attempt, "error", err)

		select {
		case <-time.After(b.backoff * time.Duration(attempt)):
		case <-b.ctx.Done():
			return
		}
	}
}

// Drain blocks until every in-flight delivery has finished.
func (b *LocalBus) Drain() {
	b.wg.Wait()
}

func (b *LocalBus) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}
