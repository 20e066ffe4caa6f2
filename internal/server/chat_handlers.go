package server

import (
	"log/slog"

	"skillswap/internal/middleware"
	"skillswap/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetBookingMessages returns a booking's chat history oldest first.
// Served at /messages/:bookingId and /api/bookings/:id/messages.
// @Summary Chat history
// @Tags chat
// @Security BearerAuth
// @Produce json
// @Param bookingId path string true "Booking ID"
// @Success 200 {array} models.ChatMessage
// @Failure 403 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /bookings/{bookingId}/messages [get]
func (s *Server) GetBookingMessages(c *fiber.Ctx) error {
	bookingID := c.Params("bookingId")
	if bookingID == "" {
		bookingID = c.Params("id")
	}
	ctx := c.UserContext()

	if _, err := s.chatService.CanAccess(ctx, bookingID, userIDFromLocals(c)); err != nil {
		if models.ErrorCode(err) == models.CodeInternal {
			return s.historyFailed(c, bookingID, err)
		}
		return respondError(c, err)
	}

	messages, err := s.chatService.History(ctx, bookingID)
	if err != nil {
		return s.historyFailed(c, bookingID, err)
	}
	return c.JSON(messages)
}

func (s *Server) historyFailed(c *fiber.Ctx, bookingID string, err error) error {
	middleware.Logger.ErrorContext(c.UserContext(), "failed to fetch messages",
		slog.String("booking_id", bookingID),
		slog.String("error", err.Error()),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "Failed to fetch messages"})
}
