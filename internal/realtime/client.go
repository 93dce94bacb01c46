package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"localpulse/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout = 10 * time.Second
	// A peer that sends nothing, not even a pong, for this long is dropped.
	idleTimeout    = 60 * time.Second
	heartbeatEvery = idleTimeout * 9 / 10
	maxInbound     = 4 << 10
	sendBuffer     = 256
)

var droppedNotice, _ = json.Marshal(Event{Type: EventDropped})

// Client is one live connection and the topics it listens to.
type Client struct {
	hub    *Hub
	Conn   *websocket.Conn
	UserID uint
	// Send is drained by WritePump. The hub closes it on unregister.
	Send chan []byte

	mu   sync.Mutex
	subs map[string]*Subscription
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		subs:   make(map[string]*Subscription),
	}
}

// Topics lists the client's current subscriptions.
func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	return topics
}

// ReadPump feeds client commands to the hub until the connection fails,
// then unregisters the client. Binary frames are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	extend := func() { _ = c.Conn.SetReadDeadline(time.Now().Add(idleTimeout)) }
	c.Conn.SetReadLimit(maxInbound)
	extend()
	c.Conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		kind, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				observability.Logger.Warn("websocket read failed",
					slog.Uint64("user_id", uint64(c.UserID)), slog.String("error", err.Error()))
			}
			return
		}
		extend()
		if kind != websocket.TextMessage {
			continue
		}
		c.hub.HandleMessage(c, raw)
	}
}

// WritePump writes queued events and heartbeats. It returns when Send is
// closed or a write fails.
func (c *Client) WritePump() {
	heartbeat := time.NewTicker(heartbeatEvery)
	defer func() {
		heartbeat.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, open := <-c.Send:
			if !open {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteMessage(kind, data)
}

// TrySend queues msg without blocking and reports whether it was queued.
// A full buffer drops msg and queues a notice instead, if there is room.
func (c *Client) TrySend(msg []byte) (queued bool) {
	// Send may already be closed by UnregisterClient.
	defer func() {
		if recover() != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
			queued = false
		}
	}()

	select {
	case c.Send <- msg:
		return true
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
	select {
	case c.Send <- droppedNotice:
	default:
	}
	return false
}
