package server

import (
	"localpulse/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// CreateBroadcast handles POST /api/admin/broadcasts
func (s *Server) CreateBroadcast(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	b, err := s.notificationService.CreateBroadcast(c.UserContext(), middleware.UserID(c), req.Title, req.Body)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

// DeleteBroadcast handles DELETE /api/admin/broadcasts/:broadcastId
func (s *Server) DeleteBroadcast(c *fiber.Ctx) error {
	id, err := parseKey(c, "broadcastId")
	if err != nil {
		return nil
	}
	if err := s.notificationService.DeleteBroadcast(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteUser handles DELETE /api/admin/users/:id
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.userService.DeleteUser(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetReports handles GET /api/admin/contents/:id/reports
func (s *Server) GetReports(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reports, err := s.contentService.Reports(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(reports)
}

// GetPendingFanOuts handles GET /api/admin/fanouts. It lists content whose
// follower notifications have chunks waiting for a retry.
func (s *Server) GetPendingFanOuts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"content_ids": s.notificationService.PendingFanOuts()})
}

// RetryFanOut handles POST /api/admin/fanouts/:id/retry
func (s *Server) RetryFanOut(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	report, err := s.notificationService.RetryFanOut(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(report)
}
