package server

import (
	"localpulse/internal/middleware"
	"localpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	user, err := s.userService.UpdateProfile(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(user)
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	users, err := s.graphService.Followers(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)
	users, err := s.graphService.Following(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(users)
}

// GetFollowStatus handles GET /api/users/:id/follow
func (s *Server) GetFollowStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	following, err := s.graphService.IsFollowing(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	counts, err := s.graphService.Counts(c.UserContext(), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(service.FollowResult{Following: following, FollowersCount: counts.Followers})
}

// ToggleFollow handles POST /api/users/:id/follow
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	result, err := s.graphService.ToggleFollow(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(result)
}

// GetUserContents handles GET /api/users/:id/contents
func (s *Server) GetUserContents(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)
	items, err := s.contentService.ListByAuthor(c.UserContext(), id, page.Limit, page.Offset, middleware.UserID(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(items)
}
