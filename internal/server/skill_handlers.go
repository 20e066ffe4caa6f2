package server

import (
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createSkillRequest struct {
	Title       string  `json:"title" validate:"required,max=120"`
	Description string  `json:"description"`
	Rate        float64 `json:"rate" validate:"gte=0"`
	Category    string  `json:"category" validate:"required,category"`
}

type updateSkillRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=120"`
	Description *string  `json:"description"`
	Rate        *float64 `json:"rate" validate:"omitempty,gte=0"`
	Category    *string  `json:"category" validate:"omitempty,category"`
}

// ListSkills handles GET /api/skills
// @Summary List skills
// @Tags skills
// @Produce json
// @Param category query string false "Category filter"
// @Success 200 {array} models.Skill
// @Router /skills [get]
func (s *Server) ListSkills(c *fiber.Ctx) error {
	skills, err := s.skillService.List(c.UserContext(), c.Query("category"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(skills)
}

// GetSkillCategories handles GET /api/skills/categories
func (s *Server) GetSkillCategories(c *fiber.Ctx) error {
	return c.JSON(s.skillService.Categories())
}

// GetSkill handles GET /api/skills/:id
// @Summary Get skill
// @Tags skills
// @Produce json
// @Param id path string true "Skill ID"
// @Success 200 {object} models.Skill
// @Failure 404 {object} models.ErrorResponse
// @Router /skills/{id} [get]
func (s *Server) GetSkill(c *fiber.Ctx) error {
	skill, err := s.skillService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(skill)
}

// GetUserSkills handles GET /api/users/:id/skills
func (s *Server) GetUserSkills(c *fiber.Ctx) error {
	skills, err := s.skillService.ListByOwner(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(skills)
}

// CreateSkill handles POST /api/skills
// @Summary Create skill
// @Tags skills
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body createSkillRequest true "Skill"
// @Success 201 {object} models.Skill
// @Failure 403 {object} models.ErrorResponse
// @Router /skills [post]
func (s *Server) CreateSkill(c *fiber.Ctx) error {
	var req createSkillRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	skill, err := s.skillService.Create(c.UserContext(), service.CreateSkillInput{
		OwnerID:     userIDFromLocals(c),
		Title:       req.Title,
		Description: req.Description,
		Rate:        req.Rate,
		Category:    req.Category,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(skill)
}

// UpdateSkill handles PUT /api/skills/:id
func (s *Server) UpdateSkill(c *fiber.Ctx) error {
	var req updateSkillRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	skill, err := s.skillService.Update(c.UserContext(), service.UpdateSkillInput{
		SkillID:     c.Params("id"),
		ActorID:     userIDFromLocals(c),
		Title:       req.Title,
		Description: req.Description,
		Rate:        req.Rate,
		Category:    req.Category,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(skill)
}

// DeleteSkill handles DELETE /api/skills/:id
func (s *Server) DeleteSkill(c *fiber.Ctx) error {
	if err := s.skillService.Delete(c.UserContext(), c.Params("id"), userIDFromLocals(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
