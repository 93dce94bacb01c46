package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"localpulse/internal/observability"
)

// Event types pushed to clients.
const (
	EventNotification      = "notification"
	EventBroadcast         = "broadcast"
	EventLikesSnapshot     = "likes_snapshot"
	EventFollowersSnapshot = "followers_snapshot"
	EventSubscribed        = "subscribed"
	EventUnsubscribed      = "unsubscribed"
	EventError             = "error"
	// EventDropped tells a slow client it missed events and should refetch.
	EventDropped = "events_dropped"
)

// Event is the envelope written to subscribers.
type Event struct {
	Type    string      `json:"type"`
	Topic   string      `json:"topic,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// LikesSnapshot is the full like-membership state of an item.
type LikesSnapshot struct {
	ContentID uint   `json:"content_id"`
	Count     int    `json:"count"`
	UserIDs   []uint `json:"user_ids"`
}

// FollowersSnapshot is the full follower set of a user.
type FollowersSnapshot struct {
	UserID      uint   `json:"user_id"`
	Count       int    `json:"count"`
	FollowerIDs []uint `json:"follower_ids"`
}

// Publisher sends events best effort. A nil Publisher or broker drops them.
type Publisher struct {
	broker Broker
}

// NewPublisher wraps broker.
func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

// Publish encodes and sends an event. Failures are logged and counted only;
// the state change that produced the event has already committed.
func (p *Publisher) Publish(ctx context.Context, topic, eventType string, payload interface{}) {
	if p == nil || p.broker == nil {
		return
	}
	data, err := json.Marshal(Event{Type: eventType, Topic: topic, Payload: payload})
	if err != nil {
		observability.RealtimePublishes.WithLabelValues("encode_error").Inc()
		observability.Logger.ErrorContext(ctx, "failed to encode realtime event",
			slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}
	if err := p.broker.Publish(context.WithoutCancel(ctx), topic, data); err != nil {
		observability.RealtimePublishes.WithLabelValues("error").Inc()
		observability.Logger.WarnContext(ctx, "failed to publish realtime event",
			slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}
	observability.RealtimePublishes.WithLabelValues("ok").Inc()
}
