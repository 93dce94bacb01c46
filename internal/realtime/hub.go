package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"strings"
	"sync"

	"localpulse/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
	// Max live topics per connection
	maxTopicsPerClient = 64
)

var (
	errTopicUnknown   = errors.New("unknown topic")
	errTopicForbidden = errors.New("cannot subscribe to another user's notifications")
	errTooManyTopics  = errors.New("too many subscriptions")
)

// SnapshotFunc returns the current full state of a counter topic, sent to a
// client right after it subscribes. Returning nil sends nothing.
type SnapshotFunc func(ctx context.Context, topic string) (interface{}, error)

// Hub tracks websocket clients and their topic subscriptions.
type Hub struct {
	broker   Broker
	snapshot SnapshotFunc

	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
}

// NewHub creates a hub reading from broker.
func NewHub(broker Broker, snapshot SnapshotFunc) *Hub {
	return &Hub{
		broker:   broker,
		snapshot: snapshot,
		conns:    make(map[uint]map[*Client]struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "live topic hub" }

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, errors.New("user connection limit reached")
	}

	client := newClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnections.Inc()
	return client, nil
}

// UnregisterClient removes the client and releases every subscription it held.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	client.mu.Lock()
	subs := client.subs
	client.subs = make(map[string]*Subscription)
	client.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if removed {
		observability.WebSocketConnections.Dec()
	}
}

// Authorize decides whether userID may listen on topic.
func Authorize(userID uint, topic string) error {
	kind, id := ParseTopic(topic)
	switch kind {
	case TopicUnknown:
		return errTopicUnknown
	case TopicNotifications:
		if id != userID {
			return errTopicForbidden
		}
	}
	return nil
}

// Subscribe attaches the client to topic and sends a snapshot when one exists.
func (h *Hub) Subscribe(ctx context.Context, c *Client, topic string) error {
	if err := Authorize(c.UserID, topic); err != nil {
		return err
	}

	c.mu.Lock()
	if _, ok := c.subs[topic]; ok {
		c.mu.Unlock()
		return nil
	}
	if len(c.subs) >= maxTopicsPerClient {
		c.mu.Unlock()
		return errTooManyTopics
	}
	c.mu.Unlock()

	sub, err := h.broker.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if _, ok := c.subs[topic]; ok {
		c.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	c.subs[topic] = sub
	c.mu.Unlock()

	go func() {
		for msg := range sub.C {
			c.TrySend(msg.Payload)
		}
	}()

	h.sendEvent(c, Event{Type: EventSubscribed, Topic: topic})
	if h.snapshot != nil {
		state, err := h.snapshot(ctx, topic)
		if err != nil {
			observability.Logger.WarnContext(ctx, "snapshot failed", slog.String("topic", topic), slog.String("error", err.Error()))
		} else if state != nil {
			h.sendEvent(c, Event{Type: snapshotEventType(topic), Topic: topic, Payload: state})
		}
	}
	return nil
}

// Unsubscribe detaches the client from topic.
func (h *Hub) Unsubscribe(c *Client, topic string) {
	c.mu.Lock()
	sub, ok := c.subs[topic]
	delete(c.subs, topic)
	c.mu.Unlock()
	if ok {
		sub.Unsubscribe()
	}
}

type clientMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// HandleMessage processes a subscribe/unsubscribe request from the client.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendEvent(c, Event{Type: EventError, Error: "invalid message"})
		return
	}
	topic := strings.TrimSpace(msg.Topic)
	switch msg.Action {
	case "subscribe":
		if err := h.Subscribe(context.Background(), c, topic); err != nil {
			h.sendEvent(c, Event{Type: EventError, Topic: topic, Error: err.Error()})
		}
	case "unsubscribe":
		h.Unsubscribe(c, topic)
		h.sendEvent(c, Event{Type: EventUnsubscribed, Topic: topic})
	case "ping":
		h.sendEvent(c, Event{Type: "pong"})
	default:
		h.sendEvent(c, Event{Type: EventError, Error: "unknown action"})
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	var clients []*Client
	for userID, userConns := range h.conns {
		for client := range userConns {
			clients = append(clients, client)
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.UnregisterClient(c)
	}
	return nil
}

func (h *Hub) sendEvent(c *Client, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.TrySend(data)
}

func snapshotEventType(topic string) string {
	switch kind, _ := ParseTopic(topic); kind {
	case TopicLikes:
		return EventLikesSnapshot
	case TopicFollowers:
		return EventFollowersSnapshot
	default:
		return "snapshot"
	}
}
