package realtime

import (
	"context"
	"log"
	"runtime/debug"
	"sync"

	"localpulse/internal/observability"

	"github.com/redis/go-redis/v9"
)

// RedisBroker fans topics out across instances through Redis pub/sub.
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker wraps rdb.
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.Publish(ctx, topic, payload).Err()
}

// Subscribe opens a dedicated pub/sub connection for topics. The subscription
// is released only by Unsubscribe.
func (b *RedisBroker) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	ps := b.rdb.Subscribe(context.WithoutCancel(ctx), topics...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Message, subscriberBuffer)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in RedisBroker subscriber: %v\n%s", r, debug.Stack())
			}
		}()
		in := ps.Channel()
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
				default:
					observability.WebSocketBackpressureDrops.WithLabelValues("broker_full").Inc()
				}
			}
		}
	}()

	return newSubscription(out, func() {
		close(stop)
		_ = ps.Close()
		wg.Wait()
	}), nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}
