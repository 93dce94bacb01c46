// Package realtime carries live topic updates to subscribers.
//
// A subscription lives until Unsubscribe is called; there is no timeout and
// no teardown tied to garbage collection.
package realtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// BroadcastTopic carries global notifications.
const BroadcastTopic = "notifications:broadcast"

// NotificationsTopic is the per-user notification stream.
func NotificationsTopic(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// LikesTopic carries full like-membership snapshots of a content item.
func LikesTopic(contentID uint) string {
	return fmt.Sprintf("content:%d:likes", contentID)
}

// FollowersTopic carries full follower snapshots of a user.
func FollowersTopic(userID uint) string {
	return fmt.Sprintf("user:%d:followers", userID)
}

// TopicKind classifies a topic name.
type TopicKind int

const (
	TopicUnknown TopicKind = iota
	TopicNotifications
	TopicBroadcast
	TopicLikes
	TopicFollowers
)

// ParseTopic returns the topic kind and the id embedded in it.
func ParseTopic(topic string) (TopicKind, uint) {
	if topic == BroadcastTopic {
		return TopicBroadcast, 0
	}
	parts := strings.Split(topic, ":")
	if len(parts) != 3 {
		return TopicUnknown, 0
	}
	parse := func(s string) (uint, bool) {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || n == 0 {
			return 0, false
		}
		return uint(n), true
	}
	switch {
	case parts[0] == "notifications" && parts[1] == "user":
		if id, ok := parse(parts[2]); ok {
			return TopicNotifications, id
		}
	case parts[0] == "content" && parts[2] == "likes":
		if id, ok := parse(parts[1]); ok {
			return TopicLikes, id
		}
	case parts[0] == "user" && parts[2] == "followers":
		if id, ok := parse(parts[1]); ok {
			return TopicFollowers, id
		}
	}
	return TopicUnknown, 0
}

// Message is one delivery on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Subscription delivers messages on C until Unsubscribe is called.
type Subscription struct {
	C      <-chan Message
	once   sync.Once
	cancel func()
}

func newSubscription(c <-chan Message, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Unsubscribe stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Broker publishes to and subscribes on named topics.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
	Close() error
}
