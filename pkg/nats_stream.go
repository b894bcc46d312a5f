package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStream publishes to and consumes from a JetStream stream with explicit
// acks. A handler error naks the message so it is redelivered, up to MaxDeliver.
type NATSStream struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	stream   jetstream.Stream
	consumer jetstream.Consumer
	consume  jetstream.ConsumeContext
	subject  string
	logger   apt.Logger
}

// NATSStreamConfig configures a NATSStream instance.
type NATSStreamConfig struct {
	URL           string        // NATS server URL
	StreamName    string        // JetStream stream name (e.g., "FULFILLMENT_TASKS")
	Subjects      []string      // Subjects bound to the stream
	ConsumerName  string        // Durable consumer name for this service
	FilterSubject string        // Subject this consumer reads; empty reads the whole stream
	MaxAge        time.Duration // How long to retain events
	MaxDeliver    int           // Redelivery bound for failing handlers (0 = server default)
	AckWait       time.Duration // Time before an unacked message is redelivered
}

// NewNATSStream creates a new NATSStream and ensures the stream and consumer exist.
func NewNATSStream(ctx context.Context, cfg NATSStreamConfig, logger apt.Logger) (*NATSStream, error) {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if len(cfg.Subjects) == 0 {
		return nil, fmt.Errorf("stream %s: %w: no subjects", cfg.StreamName, ErrConfig)
	}

	conn, err := nats.Connect(cfg.URL, nats.Name(cfg.ConsumerName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: cfg.Subjects,
		MaxAge:   cfg.MaxAge,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.StreamName, err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          cfg.ConsumerName,
		Durable:       cfg.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		MaxDeliver:    cfg.MaxDeliver,
		AckWait:       cfg.AckWait,
		FilterSubject: cfg.FilterSubject,
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.ConsumerName, err)
	}

	return &NATSStream{
		conn:     conn,
		js:       js,
		stream:   stream,
		consumer: consumer,
		subject:  cfg.FilterSubject,
		logger:   logger,
	}, nil
}

// Publish publishes a message to the stream and waits for the server ack.
func (s *NATSStream) Publish(ctx context.Context, topic string, msg []byte) error {
	if _, err := s.js.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}
	return nil
}

// Subscribe implements events.Subscriber. The consumer is already bound to
// its filter subject; messages for other topics are acked and skipped.
func (s *NATSStream) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	want := topic
	if want == "" {
		want = s.subject
	}
	cc, err := s.consumer.Consume(func(msg jetstream.Msg) {
		if want != "" && msg.Subject() != want {
			_ = msg.Ack()
			return
		}
		if err := handler(ctx, msg.Data()); err != nil {
			s.logger.Info("stream handler failed, requesting redelivery", "subject", msg.Subject(), "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to consume stream: %w", err)
	}
	s.consume = cc
	return nil
}

// Close stops consuming and closes the NATS connection.
func (s *NATSStream) Close() error {
	if s.consume != nil {
		s.consume.Stop()
	}
	s.conn.Close()
	return nil
}
