package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/notifications"
	"skillswap/internal/observability"
	"skillswap/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var (
	chatLog     = observability.NewWSLogger("chat")
	presenceLog = observability.NewWSLogger("notifications")
)

// watchPresence records users going online and, after the grace window,
// offline. Booking views read the same state through Hub.IsOnline.
func (s *Server) watchPresence() {
	s.hub.SetPresenceCallbacks(
		func(userID string) {
			presenceLog.LogLifecycle(context.Background(), "user_online", map[string]any{"user_id": userID})
		},
		func(userID string) {
			presenceLog.LogLifecycle(context.Background(), "user_offline", map[string]any{"user_id": userID})
		},
	)
}

// WebSocketChatHandler serves GET /api/ws/chat?bookingId=...
// The booking and the caller's participation are checked before the upgrade,
// so outsiders get a plain 403 instead of a socket.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	upgrade := websocket.New(s.serveChat)

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		userID := userIDFromLocals(c)
		bookingID := strings.TrimSpace(c.Query("bookingId"))
		if bookingID == "" {
			return respondError(c, models.NewValidationError("bookingId is required"))
		}
		if claimed := c.Query("userId"); claimed != "" && claimed != userID {
			return respondError(c, models.NewForbiddenError("userId does not match the authenticated user"))
		}

		booking, err := s.chatService.CanAccess(c.UserContext(), bookingID, userID)
		if err != nil {
			return respondError(c, err)
		}

		userType := c.Query("userType")
		if !models.Role(userType).Valid() {
			userType = string(booking.RoleOf(userID))
		}

		c.Locals("bookingID", booking.ID)
		c.Locals("userType", userType)
		return upgrade(c)
	}
}

func (s *Server) serveChat(conn *websocket.Conn) {
	middleware.ActiveWebSockets.Inc()
	defer middleware.ActiveWebSockets.Dec()

	userID, _ := conn.Locals("userID").(string)
	bookingID, _ := conn.Locals("bookingID").(string)
	userType, _ := conn.Locals("userType").(string)
	ctx := middleware.WithUserID(context.Background(), userID)

	client, err := s.roomHub.Join(bookingID, userID, userType, conn)
	if err != nil {
		chatLog.LogError(ctx, userID, bookingID, err, "join")
		if frame, ferr := models.NewFrame(models.EventError, err.Error()); ferr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, frame)
		}
		_ = conn.Close()
		return
	}

	client.IncomingHandler = func(c *notifications.Client, raw []byte) {
		s.handleChatFrame(ctx, c, raw)
	}

	s.broadcastPresence(ctx, client, models.EventUserConnected, userType)

	client.Serve()

	s.broadcastPresence(ctx, client, models.EventUserDisconnected, "")
	chatLog.LogDisconnect(ctx, userID, bookingID, "closed")
}

func (s *Server) broadcastPresence(ctx context.Context, client *notifications.Client, event, userType string) {
	frame, err := models.NewFrame(event, models.PresencePayload{UserID: client.UserID, UserType: userType})
	if err != nil {
		return
	}
	s.roomHub.Broadcast(ctx, client.RoomID, frame, client)
}

// sendChatError answers the sender only.
func (s *Server) sendChatError(client *notifications.Client, message string) {
	frame, err := models.NewFrame(models.EventError, message)
	if err != nil {
		return
	}
	s.roomHub.SendTo(client, frame)
}

func (s *Server) handleChatFrame(ctx context.Context, client *notifications.Client, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			chatLog.LogError(ctx, client.UserID, client.RoomID, fmt.Errorf("panic: %v", r), "frame")
			s.sendChatError(client, "Internal error")
		}
	}()

	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		s.sendChatError(client, "Invalid message format")
		return
	}
	observability.MessageThroughput.WithLabelValues("chat", frame.Event).Inc()

	ctx, span := observability.GetTraceLayer().TraceWebSocket(ctx, s.roomHub.Name(), frame.Event)
	defer span.End()

	switch frame.Event {
	case models.EventChatMessage:
		s.handleChatMessage(ctx, client, frame.Data)
	case models.EventTyping:
		var in models.TypingPayload
		if err := json.Unmarshal(frame.Data, &in); err != nil {
			s.sendChatError(client, "Invalid typing payload")
			return
		}
		out, err := models.NewFrame(models.EventTyping, models.TypingPayload{UserID: client.UserID, IsTyping: in.IsTyping})
		if err != nil {
			return
		}
		s.roomHub.Broadcast(ctx, client.RoomID, out, client)
	default:
		s.sendChatError(client, "Unknown event "+frame.Event)
	}
}

func (s *Server) handleChatMessage(ctx context.Context, client *notifications.Client, data json.RawMessage) {
	var in models.OutgoingChatMessage
	if len(data) == 0 || json.Unmarshal(data, &in) != nil {
		s.sendChatError(client, "Invalid message payload")
		return
	}
	if strings.TrimSpace(in.Content) == "" || strings.TrimSpace(in.SenderID) == "" {
		s.sendChatError(client, "Message content and senderId are required")
		return
	}
	if in.SenderID != client.UserID {
		s.sendChatError(client, "senderId does not match the authenticated user")
		return
	}

	allowed, _, err := s.rateLimiter.Allow(ctx, middleware.ChatSendLimit, "user:"+client.UserID)
	if err == nil && !allowed {
		s.sendChatError(client, "Rate limit exceeded. Please wait a moment.")
		return
	}

	userType := in.UserType
	if userType == "" {
		userType = client.UserType
	}

	_, err = s.chatService.SendAndRelay(ctx, service.SendInput{
		BookingID: client.RoomID,
		SenderID:  client.UserID,
		ClientID:  in.ID,
		Content:   in.Content,
		UserType:  userType,
	}, func(msg *models.ChatMessage) {
		out, err := models.NewFrame(models.EventChatMessage, msg)
		if err != nil {
			return
		}
		s.roomHub.Broadcast(ctx, client.RoomID, out, nil)
	})
	if err != nil {
		chatLog.LogError(ctx, client.UserID, client.RoomID, err, models.EventChatMessage)
		reply := "Failed to send message"
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
			reply = appErr.Message
		}
		s.sendChatError(client, reply)
		return
	}
	chatLog.LogMessage(ctx, client.UserID, client.RoomID, models.EventChatMessage)
}

// WebSocketNotificationsHandler serves GET /api/ws/notifications: one socket per
// tab receiving this user's notification frames.
func (s *Server) WebSocketNotificationsHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		userID, _ := conn.Locals("userID").(string)
		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("notification socket rejected",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			if frame, ferr := models.NewFrame(models.EventError, err.Error()); ferr == nil {
				_ = conn.WriteMessage(websocket.TextMessage, frame)
			}
			_ = conn.Close()
			return
		}
		client.Serve()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
