package server

import (
	"log/slog"

	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// userIDFromLocals returns the user AuthRequired stored, or "".
func userIDFromLocals(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

// respondError writes err with the status its AppError code maps to.
// Errors without a code are treated as internal and logged.
func respondError(c *fiber.Ctx, err error) error {
	if models.ErrorCode(err) == "" {
		err = models.NewInternalError(err)
	}
	if models.ErrorCode(err) == models.CodeInternal {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// parseBody decodes the JSON body into dst and runs struct validation on it.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	if err := validation.Struct(dst); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}
