package server

import (
	"localpulse/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications. Personal notifications
// and broadcasts come back merged, newest first.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	items, err := s.notificationService.Inbox(c.UserContext(), middleware.UserID(c), page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(items)
}

// GetUnreadCount handles GET /api/notifications/unread-count
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	n, err := s.notificationService.UnreadCount(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"unread": n})
}

// MarkNotificationRead handles POST /api/notifications/:notificationId/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseKey(c, "notificationId")
	if err != nil {
		return nil
	}
	if err := s.notificationService.MarkRead(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllRead(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

// DeleteNotification handles DELETE /api/notifications/:notificationId
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := parseKey(c, "notificationId")
	if err != nil {
		return nil
	}
	if err := s.notificationService.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearNotifications handles DELETE /api/notifications. Broadcasts stay.
func (s *Server) ClearNotifications(c *fiber.Ctx) error {
	n, err := s.notificationService.ClearPersonal(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}
