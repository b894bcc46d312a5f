package pkg

import (
	"context"
	"testing"
)

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	p.topics = append(p.topics, topic)
	return nil
}

func TestTopicPublisherRoutesByPrefix(t *testing.T) {
	core := &recordingPublisher{}
	stream := &recordingPublisher{}
	dispatch := &recordingPublisher{}

	pub := NewTopicPublisher(core).
		Route("fulfillment.", stream).
		Route("fulfillment.dispatch", dispatch)

	for _, topic := range []string{"orders.status", "fulfillment.order_advance", "fulfillment.dispatch", "kitchen.tickets"} {
		if err := pub.Publish(context.Background(), topic, nil); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	if len(core.topics) != 2 {
		t.Errorf("core got %v, want orders.status and kitchen.tickets", core.topics)
	}
	if len(stream.topics) != 1 || stream.topics[0] != "fulfillment.order_advance" {
		t.Errorf("stream got %v, want fulfillment.order_advance", stream.topics)
	}
	if len(dispatch.topics) != 1 || dispatch.topics[0] != "fulfillment.dispatch" {
		t.Errorf("dispatch got %v, want fulfillment.dispatch", dispatch.topics)
	}
}
