package realtime

import (
	"context"
	"sync"

	"localpulse/internal/observability"
)

const subscriberBuffer = 64

type localSub struct {
	ch     chan Message
	topics []string
}

// LocalBroker is an in-process broker for single-instance deployments and tests.
type LocalBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*localSub]struct{}
	closed bool
}

// NewLocalBroker creates an empty broker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{topics: make(map[string]map[*localSub]struct{})}
}

// Publish delivers payload to every current subscriber without blocking.
// A subscriber whose buffer is full misses the message.
func (b *LocalBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[topic] {
		select {
		case sub.ch <- Message{Topic: topic, Payload: payload}:
		default:
			observability.WebSocketBackpressureDrops.WithLabelValues("broker_full").Inc()
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, topics ...string) (*Subscription, error) {
	sub := &localSub{ch: make(chan Message, subscriberBuffer), topics: topics}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return newSubscription(sub.ch, func() {}), nil
	}
	for _, t := range topics {
		set, ok := b.topics[t]
		if !ok {
			set = make(map[*localSub]struct{})
			b.topics[t] = set
		}
		set[sub] = struct{}{}
	}
	b.mu.Unlock()

	return newSubscription(sub.ch, func() { b.remove(sub) }), nil
}

func (b *LocalBroker) remove(sub *localSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := false
	for _, t := range sub.topics {
		if set, ok := b.topics[t]; ok {
			if _, ok := set[sub]; ok {
				delete(set, sub)
				removed = true
			}
			if len(set) == 0 {
				delete(b.topics, t)
			}
		}
	}
	if removed {
		close(sub.ch)
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (b *LocalBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close drops every subscription.
func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	seen := make(map[*localSub]struct{})
	for _, set := range b.topics {
		for sub := range set {
			if _, ok := seen[sub]; !ok {
				seen[sub] = struct{}{}
				close(sub.ch)
			}
		}
	}
	b.topics = make(map[string]map[*localSub]struct{})
	return nil
}
