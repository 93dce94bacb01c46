package server

import (
	"context"

	"localpulse/internal/middleware"
	"localpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetContent handles GET /api/contents/:id and records a view.
func (s *Server) GetContent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	item, err := s.contentService.Get(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}

	// A lost view must never fail the read.
	go s.engagementService.RecordView(context.WithoutCancel(c.UserContext()), id)

	return c.JSON(item)
}

// UpdateContent handles PUT /api/contents/:id
func (s *Server) UpdateContent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateContentInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	item, err := s.contentService.Update(c.UserContext(), middleware.UserID(c), id, req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(item)
}

// DeleteContent handles DELETE /api/contents/:id
func (s *Server) DeleteContent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.contentService.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/contents/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	result, err := s.engagementService.ToggleLike(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(result)
}

// GetLikes handles GET /api/contents/:id/likes
func (s *Server) GetLikes(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.contentService.Get(c.UserContext(), id, 0); err != nil {
		return respond(c, err)
	}
	snapshot, err := s.engagementService.LikesSnapshot(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(snapshot)
}

// ShareContent handles POST /api/contents/:id/share
func (s *Server) ShareContent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.engagementService.RecordShare(c.UserContext(), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReportContent handles POST /api/contents/:id/report
func (s *Server) ReportContent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	report, err := s.contentService.Report(c.UserContext(), middleware.UserID(c), id, req.Reason)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}
