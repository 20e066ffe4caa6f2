package server

import (
	"github.com/gofiber/fiber/v2"
)

// ListNotifications handles GET /api/notifications, newest first.
// @Summary List my notifications
// @Tags notifications
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	list, err := s.notificationService.List(c.UserContext(), userIDFromLocals(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// GetUnreadCount handles GET /api/notifications/unread-count
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	count, err := s.notificationService.UnreadCount(c.UserContext(), userIDFromLocals(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	if err := s.notificationService.MarkRead(c.UserContext(), userIDFromLocals(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearNotifications handles DELETE /api/notifications
func (s *Server) ClearNotifications(c *fiber.Ctx) error {
	n, err := s.notificationService.ClearAll(c.UserContext(), userIDFromLocals(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}
