package notifications

import (
	"log/slog"
	"sync"
	"time"

	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	sendBufferSize = 256
)

var dropNotice, _ = models.NewFrame(models.EventMessagesDropped, map[string]string{"reason": "buffer_full"})

// WSHub is an interface for hubs that manage generic clients
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is a generic middleman between the websocket connection and a hub.
type Client struct {
	Hub WSHub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// ID identifies this connection across instances.
	ID string

	UserID string

	// RoomID is the booking a chat connection joined; empty for notification sockets.
	RoomID   string
	UserType string

	// Callback for handling incoming messages
	IncomingHandler func(*Client, []byte)

	// OnActivity runs for every inbound frame.
	OnActivity func(userID string)

	closeOnce sync.Once
}

// CloseSend closes the outbound queue, which stops WritePump. Safe to call more than once.
func (c *Client) CloseSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// Serve runs the pumps until the peer goes away. It returns only after both pumps stopped,
// so the connection is not touched once the websocket handler returns.
func (c *Client) Serve() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WritePump()
	}()
	c.ReadPump()
	c.CloseSend()
	<-done
}

// NewClient creates a new Client instance
func NewClient(hub WSHub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				middleware.Logger.Warn("websocket read failed",
					slog.String("hub", c.Hub.Name()),
					slog.String("user_id", c.UserID),
					slog.String("error", err.Error()),
				)
			}
			break
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		if c.OnActivity != nil {
			c.OnActivity(c.UserID)
		}
		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. A full buffer drops the message.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
		middleware.Logger.Warn("websocket buffer full, dropped message",
			slog.String("hub", c.Hub.Name()),
			slog.String("user_id", c.UserID),
		)

		// Tell the client so it can re-fetch history.
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}
