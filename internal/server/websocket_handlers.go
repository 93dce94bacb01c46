package server

import (
	"context"
	"log"

	"localpulse/internal/middleware"
	"localpulse/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketHandler handles GET /api/ws. Each connection starts subscribed to
// its own notification stream and the broadcast topic; the client adds
// likes and followers topics with {"action":"subscribe","topic":...}.
func (s *Server) WebSocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket: failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()

		ctx := context.Background()
		for _, topic := range []string{realtime.NotificationsTopic(userID), realtime.BroadcastTopic} {
			if err := s.hub.Subscribe(ctx, client, topic); err != nil {
				log.Printf("WebSocket: user %d could not join %s: %v", userID, topic, err)
			}
		}

		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if middleware.UserID(c) == 0 {
			return fiber.ErrUnauthorized
		}
		return upgrade(c)
	}
}

// topicSnapshot returns the full current state for likes and followers
// topics so a new subscriber starts in sync.
func (s *Server) topicSnapshot(ctx context.Context, topic string) (interface{}, error) {
	kind, id := realtime.ParseTopic(topic)
	switch kind {
	case realtime.TopicLikes:
		return s.engagementService.LikesSnapshot(ctx, id)
	case realtime.TopicFollowers:
		return s.graphService.FollowersSnapshot(ctx, id)
	}
	return nil, nil
}
