package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

type subscription struct {
	id      string
	topic   string
	channel chan ports.Message
}

// Broker is the default in-process publisher. Subscribers get their own
// buffered channel per topic; a slow subscriber drops messages rather
// than blocking the transaction path.
type Broker struct {
	logger *slog.Logger

	mu            sync.RWMutex
	subscriptions map[string][]*subscription
	closed        bool
}

func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Broker{
		logger:        logger.With("component", "event-broker"),
		subscriptions: make(map[string][]*subscription),
	}
}

func (b *Broker) Publish(ctx context.Context, topic string, message ports.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return domain.ErrClosed
	}

	for _, sub := range b.subscriptions[topic] {
		select {
		case sub.channel <- message:
		default:
			b.logger.Warn("subscriber buffer full, dropping message",
				"topic", topic,
				"subscription_id", sub.id,
				"event_id", message.EventID)
		}
	}

	b.logger.Debug("message published",
		"topic", topic,
		"event_id", message.EventID,
		"tenant_id", message.TenantID)
	return nil
}

// Subscribe returns a channel of messages for the topic and a cancel
// function that closes it.
func (b *Broker) Subscribe(topic string) (<-chan ports.Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		id:      uuid.NewString(),
		topic:   topic,
		channel: make(chan ports.Message, 64),
	}
	b.subscriptions[topic] = append(b.subscriptions[topic], sub)

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscriptions[topic]
		for i, s := range subs {
			if s.id == sub.id {
				b.subscriptions[topic] = append(subs[:i], subs[i+1:]...)
				close(s.channel)
				return
			}
		}
	}

	return sub.channel, cancel
}

func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			close(sub.channel)
		}
	}
	b.subscriptions = make(map[string][]*subscription)
}

var _ ports.Publisher = (*Broker)(nil)
