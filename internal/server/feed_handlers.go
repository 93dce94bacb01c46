package server

import (
	"localpulse/internal/middleware"
	"localpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feed?category=&state=&district=&block=&q=&near_me=1&limit=&offset=
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, s.config.FeedPageSize)
	view, err := s.feedService.Build(c.UserContext(), service.FeedQuery{
		UserID:    middleware.UserID(c),
		Category:  c.Query("category"),
		Geography: geographyQuery(c),
		Query:     c.Query("q"),
		NearMe:    c.QueryBool("near_me"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(view)
}

// GetCategories handles GET /api/feed/categories
func (s *Server) GetCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"categories": s.feedService.Categories()})
}
