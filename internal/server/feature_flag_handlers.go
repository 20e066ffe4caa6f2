package server

import (
	"skillswap/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags handles GET /api/feature-flags
// @Summary Feature flags
// @Description Known flags, the configured rules and their value for the caller
// @Tags meta
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{known=[]featureflags.Flag,raw=map[string]string,evaluated=map[string]bool}
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"known":     featureflags.Known,
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userIDFromLocals(c)),
	})
}
