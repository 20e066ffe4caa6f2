package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"skillswap/internal/middleware"
	"skillswap/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const roomHubName = "chat room hub"

// ErrRoomHubClosed is returned by Join after Shutdown.
var ErrRoomHubClosed = errors.New("chat room hub is shut down")

// roomEnvelope is what travels on a booking's Redis channel.
type roomEnvelope struct {
	ExcludeConn string          `json:"excludeConn,omitempty"`
	Frame       json.RawMessage `json:"frame"`
}

// RoomHub keeps the chat room of every booking: the set of connections joined
// under that booking id. Rooms exist only while they have members.
type RoomHub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*Client]struct{}
	totalConns int
	closed     bool

	notifier *Notifier
	wired    bool
	wsLog    *observability.WSLogger
}

// NewRoomHub creates a hub. With a nil redis client rooms fan out locally only.
func NewRoomHub(rdb *redis.Client) *RoomHub {
	return &RoomHub{
		rooms:    make(map[string]map[*Client]struct{}),
		notifier: NewNotifier(rdb),
		wsLog: observability.NewWSLogger(roomHubName),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *RoomHub) Name() string { return roomHubName }

// Join adds a connection to the booking's room.
func (h *RoomHub) Join(bookingID, userID, userType string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrRoomHubClosed
	}
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}

	room, ok := h.rooms[bookingID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[bookingID] = room
	}
	perUser := 0
	for c := range room {
		if c.UserID == userID {
			perUser++
		}
	}
	if perUser >= maxConnsPerUser {
		if len(room) == 0 {
			delete(h.rooms, bookingID)
		}
		h.mu.Unlock()
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	client.RoomID = bookingID
	client.UserType = userType
	room[client] = struct{}{}
	h.totalConns++
	size := len(room)
	h.mu.Unlock()

	observability.WebSocketRoomConnections.WithLabelValues(roomHubName).Inc()
	h.wsLog.LogConnect(context.Background(), userID, bookingID)
	middleware.Logger.Debug("chat room joined", slog.String("booking_id", bookingID), slog.Int("members", size))
	return client, nil
}

// Leave removes the connection from its room. It reports false when the client had already left.
func (h *RoomHub) Leave(client *Client) bool {
	h.mu.Lock()
	room, ok := h.rooms[client.RoomID]
	if !ok {
		h.mu.Unlock()
		return false
	}
	if _, member := room[client]; !member {
		h.mu.Unlock()
		return false
	}
	delete(room, client)
	h.totalConns--
	if len(room) == 0 {
		delete(h.rooms, client.RoomID)
	}
	h.mu.Unlock()

	client.CloseSend()
	observability.WebSocketRoomConnections.WithLabelValues(roomHubName).Dec()
	return true
}

// UnregisterClient satisfies WSHub.
func (h *RoomHub) UnregisterClient(client *Client) {
	h.Leave(client)
}

// Members returns the distinct user ids currently in the booking's room.
func (h *RoomHub) Members(bookingID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for c := range h.rooms[bookingID] {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		out = append(out, c.UserID)
	}
	sort.Strings(out)
	return out
}

// RoomCount returns how many rooms have at least one member on this instance.
func (h *RoomHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Broadcast delivers frame to every member of the booking's room except exclude (may be nil).
// Once wired to Redis the frame goes through the booking channel so members on other
// instances receive it too.
func (h *RoomHub) Broadcast(ctx context.Context, bookingID string, frame []byte, exclude *Client) {
	excludeID := ""
	if exclude != nil {
		excludeID = exclude.ID
	}

	h.mu.RLock()
	wired := h.wired
	h.mu.RUnlock()

	if wired {
		payload, err := json.Marshal(roomEnvelope{ExcludeConn: excludeID, Frame: frame})
		if err == nil {
			if err = h.notifier.PublishRoom(ctx, bookingID, string(payload)); err == nil {
				return
			}
		}
		middleware.Logger.WarnContext(ctx, "room publish failed, delivering locally",
			slog.String("booking_id", bookingID),
			slog.String("error", err.Error()),
		)
	}
	h.deliverLocal(bookingID, frame, excludeID)
}

// SendTo delivers frame to a single connection.
func (h *RoomHub) SendTo(client *Client, frame []byte) {
	client.TrySend(frame)
}

func (h *RoomHub) deliverLocal(bookingID string, frame []byte, excludeConn string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[bookingID] {
		if excludeConn != "" && c.ID == excludeConn {
			continue
		}
		c.TrySend(frame)
	}
}

// StartWiring subscribes to every booking channel. Without Redis it is a no-op and
// Broadcast keeps delivering locally.
func (h *RoomHub) StartWiring(ctx context.Context) error {
	if !h.notifier.Enabled() {
		return nil
	}
	err := h.notifier.StartRoomSubscriber(ctx, func(channel, payload string) {
		bookingID, ok := strings.CutPrefix(channel, roomChannelPrefix)
		if !ok || bookingID == "" {
			middleware.Logger.Warn("invalid chat room channel", slog.String("channel", channel))
			return
		}
		var env roomEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			middleware.Logger.Warn("invalid chat room envelope", slog.String("channel", channel), slog.String("error", err.Error()))
			return
		}
		h.deliverLocal(bookingID, env.Frame, env.ExcludeConn)
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.wired = true
	h.mu.Unlock()
	h.wsLog.LogLifecycle(ctx, "wired", map[string]any{"pattern": roomChannelPrefix + "*"})
	return nil
}

// Shutdown closes every room connection.
func (h *RoomHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	rooms := h.rooms
	h.rooms = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	for _, room := range rooms {
		for client := range room {
			if client.Conn == nil {
				continue
			}
			_ = client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
			_ = client.Conn.Close()
		}
	}
	return nil
}
