package pkg

import (
	"context"
	"strings"

	"github.com/appetiteclub/apt/events"
)

// TopicPublisher sends each message to the publisher registered for the
// longest matching topic prefix, or to the fallback.
type TopicPublisher struct {
	routes   map[string]events.Publisher
	fallback events.Publisher
}

func NewTopicPublisher(fallback events.Publisher) *TopicPublisher {
	return &TopicPublisher{
		routes:   make(map[string]events.Publisher),
		fallback: fallback,
	}
}

// Route sends topics starting with prefix to p.
func (t *TopicPublisher) Route(prefix string, p events.Publisher) *TopicPublisher {
	t.routes[prefix] = p
	return t
}

func (t *TopicPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return t.publisherFor(topic).Publish(ctx, topic, msg)
}

func (t *TopicPublisher) publisherFor(topic string) events.Publisher {
	var match string
	target := t.fallback
	for prefix, p := range t.routes {
		if strings.HasPrefix(topic, prefix) && len(prefix) > len(match) {
			match = prefix
			target = p
		}
	}
	return target
}
