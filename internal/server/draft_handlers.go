package server

import (
	"localpulse/internal/middleware"
	"localpulse/internal/models"
	"localpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetDrafts handles GET /api/drafts
func (s *Server) GetDrafts(c *fiber.Ctx) error {
	drafts, err := s.publishService.ListDrafts(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(drafts)
}

// SaveDraft handles POST /api/drafts. It is called on every autosave.
func (s *Server) SaveDraft(c *fiber.Ctx) error {
	var req service.DraftInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	draft, err := s.publishService.SaveDraft(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(draft)
}

// GetDraft handles GET /api/drafts/:draftId
func (s *Server) GetDraft(c *fiber.Ctx) error {
	id, err := parseKey(c, "draftId")
	if err != nil {
		return nil
	}
	draft, err := s.publishService.GetDraft(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(draft)
}

// DeleteDraft handles DELETE /api/drafts/:draftId
func (s *Server) DeleteDraft(c *fiber.Ctx) error {
	id, err := parseKey(c, "draftId")
	if err != nil {
		return nil
	}
	if err := s.publishService.DeleteDraft(c.UserContext(), middleware.UserID(c), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PublishDraft handles POST /api/drafts/:draftId/publish. The optional
// multipart fields thumbnail, frame and video replace the draft's URLs.
func (s *Server) PublishDraft(c *fiber.Ctx) error {
	id, err := parseKey(c, "draftId")
	if err != nil {
		return nil
	}

	var uploads service.PublishUploads
	for field, dst := range map[string]*[]byte{
		"thumbnail": &uploads.Thumbnail,
		"frame":     &uploads.Frame,
		"video":     &uploads.Video,
	} {
		data, err := formFile(c, field)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Could not read "+field+" upload"))
		}
		*dst = data
	}

	result, err := s.publishService.Publish(c.UserContext(), middleware.UserID(c), id, uploads)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// UploadAsset handles POST /api/uploads with a single multipart field "file".
func (s *Server) UploadAsset(c *fiber.Ctx) error {
	data, err := formFile(c, "file")
	if err != nil || data == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}
	url, err := s.publishService.UploadAsset(c.UserContext(), data)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}
