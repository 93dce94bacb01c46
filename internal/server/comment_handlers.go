package server

import (
	"localpulse/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type textRequest struct {
	Text string `json:"text"`
}

// GetComments handles GET /api/contents/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	comments, err := s.engagementService.ListComments(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/contents/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	comment, err := s.engagementService.AddComment(c.UserContext(), id, middleware.UserID(c), req.Text)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/comments/:commentId
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	comment, err := s.engagementService.UpdateComment(c.UserContext(), middleware.UserID(c), id, req.Text)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	if err := s.engagementService.DeleteComment(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetReplies handles GET /api/comments/:commentId/replies
func (s *Server) GetReplies(c *fiber.Ctx) error {
	id, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	replies, err := s.engagementService.ListReplies(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(replies)
}

// CreateReply handles POST /api/comments/:commentId/replies
func (s *Server) CreateReply(c *fiber.Ctx) error {
	id, err := parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	reply, err := s.engagementService.AddReply(c.UserContext(), id, middleware.UserID(c), req.Text)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}

// UpdateReply handles PUT /api/replies/:replyId
func (s *Server) UpdateReply(c *fiber.Ctx) error {
	id, err := parseID(c, "replyId")
	if err != nil {
		return nil
	}
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	reply, err := s.engagementService.UpdateReply(c.UserContext(), middleware.UserID(c), id, req.Text)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(reply)
}

// DeleteReply handles DELETE /api/replies/:replyId
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	id, err := parseID(c, "replyId")
	if err != nil {
		return nil
	}
	if err := s.engagementService.DeleteReply(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
