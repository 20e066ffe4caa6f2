package server

import (
	"skillswap/internal/models"
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	Name string `json:"name" validate:"max=100"`
	Bio  string `json:"bio" validate:"max=500"`
}

// GetMyProfile returns the authenticated user.
// @Summary Get my profile
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), userIDFromLocals(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile edits name and bio of the authenticated user.
// @Summary Update my profile
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body updateProfileRequest true "Profile"
// @Success 200 {object} models.User
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID: userIDFromLocals(c),
		Name:   req.Name,
		Bio:    req.Bio,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile returns a public profile.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

type mentorResponse struct {
	models.User
	Online bool `json:"online"`
}

// ListMentors returns every user who can be booked, flagged online when they
// have a live socket. ?online=true keeps only those.
func (s *Server) ListMentors(c *fiber.Ctx) error {
	ctx := c.UserContext()
	mentors, err := s.userService.ListMentors(ctx)
	if err != nil {
		return respondError(c, err)
	}

	online := make(map[string]bool)
	for _, id := range s.hub.OnlineUsers(ctx) {
		online[id] = true
	}
	onlyOnline := c.QueryBool("online", false)

	out := make([]mentorResponse, 0, len(mentors))
	for _, m := range mentors {
		if onlyOnline && !online[m.ID] {
			continue
		}
		out = append(out, mentorResponse{User: m, Online: online[m.ID]})
	}
	return c.JSON(out)
}
