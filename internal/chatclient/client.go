// Package chatclient is a Go client for one booking's chat room: it loads the
// history once, keeps a realtime connection open with bounded reconnection and
// reconciles optimistically appended messages with their server echo.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"skillswap/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = time.Second
	defaultPendingTimeout    = 10 * time.Second
	writeWait                = 10 * time.Second
	eventBufferSize          = 64
)

var (
	ErrNotConnected    = errors.New("chatclient: not connected")
	ErrReconnectFailed = errors.New("chatclient: reconnect attempts exhausted")
	ErrEmptyMessage    = errors.New("chatclient: message content is empty")
)

// Status is the connection state shown to the user.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusFailed       Status = "failed"
)

// Config configures a Client. BaseURL is the http(s) origin of the API.
type Config struct {
	BaseURL   string
	BookingID string
	UserID    string
	UserType  string
	// Token is the bearer JWT used for history and ticket requests.
	Token string

	// ReconnectAttempts is how many times a dropped or failed connection is retried
	// before the client gives up. Zero means the default of 5; negative disables retries.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	// PendingTimeout is how long a sent message waits for its echo before it
	// is marked failed. Zero means 10s.
	PendingTimeout time.Duration

	Dialer     *websocket.Dialer
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Message is a chat message as displayed. Pending is true until the server
// echo arrives. Failed is set when the echo will not come: the write failed,
// the server answered with an error, the connection dropped or the echo
// timed out. Failed messages are not resent.
type Message struct {
	models.ChatMessage
	Pending bool `json:"pending,omitempty"`
	Failed  bool `json:"failed,omitempty"`
}

type EventKind string

const (
	EventStatus           EventKind = "status"
	EventMessage          EventKind = "message"
	EventUserConnected    EventKind = "user-connected"
	EventUserDisconnected EventKind = "user-disconnected"
	EventTyping           EventKind = "typing"
	EventError            EventKind = "error"
	EventMessageFailed    EventKind = "message-failed"
)

// Event is delivered on Events. Only the fields matching Kind are set.
type Event struct {
	Kind     EventKind
	Status   Status
	Message  Message
	Presence models.PresencePayload
	Typing   models.TypingPayload
	Error    string
}

// Client is safe for concurrent use. Run owns the connection; Send and Typing
// write to whichever connection is current.
type Client struct {
	cfg    Config
	log    *slog.Logger
	events chan Event

	mu       sync.Mutex
	status   Status
	messages []Message
	pending  map[string]time.Time
	conn     *websocket.Conn

	writeMu sync.Mutex
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("chatclient: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("chatclient: invalid BaseURL: %w", err)
	}
	if cfg.BookingID == "" || cfg.UserID == "" {
		return nil, errors.New("chatclient: BookingID and UserID are required")
	}
	if cfg.ReconnectAttempts == 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.ReconnectAttempts < 0 {
		cfg.ReconnectAttempts = 0
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = defaultPendingTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		cfg:     cfg,
		log:     log.With(slog.String("booking_id", cfg.BookingID), slog.String("user_id", cfg.UserID)),
		events:  make(chan Event, eventBufferSize),
		status:  StatusDisconnected,
		pending: make(map[string]time.Time),
	}, nil
}

// Events carries status changes, messages, presence, typing and server errors.
// Events are dropped when the buffer is full.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Messages returns a snapshot of the conversation in display order.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Run loads the history and keeps the realtime connection up until ctx is done
// or reconnection gives up, in which case it returns ErrReconnectFailed.
func (c *Client) Run(ctx context.Context) error {
	c.setStatus(StatusConnecting)

	history, err := c.fetchHistory(ctx)
	if err != nil {
		c.log.Warn("chat history unavailable", slog.String("error", err.Error()))
		c.emit(Event{Kind: EventError, Error: "Failed to fetch messages"})
	} else {
		c.mu.Lock()
		c.messages = make([]Message, 0, len(history)+len(c.messages))
		for _, m := range history {
			c.messages = append(c.messages, Message{ChatMessage: m})
		}
		c.mu.Unlock()
	}

	failures := 0
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected)
			return ctx.Err()
		}
		if connected {
			failures = 0
		}
		c.setStatus(StatusDisconnected)

		if failures >= c.cfg.ReconnectAttempts {
			c.setStatus(StatusFailed)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrReconnectFailed, err)
			}
			return ErrReconnectFailed
		}
		failures++
		c.log.Info("chat connection lost, retrying",
			slog.Int("attempt", failures),
			slog.Int("max_attempts", c.cfg.ReconnectAttempts),
		)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setStatus(StatusDisconnected)
			return ctx.Err()
		case <-timer.C:
		}
		c.setStatus(StatusConnecting)
	}
}

// session dials once and reads until the connection ends. connected reports
// whether the handshake succeeded.
func (c *Client) session(ctx context.Context) (connected bool, err error) {
	wsURL, err := c.chatURL(ctx)
	if err != nil {
		return false, err
	}

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial chat: %w (status %d)", err, resp.StatusCode)
		}
		return false, fmt.Errorf("dial chat: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setStatus(StatusConnected)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sweepDone := make(chan struct{})
	go c.sweepPending(sweepDone)

	err = c.readLoop(conn)
	close(sweepDone)

	c.mu.Lock()
	c.conn = nil
	lost := make([]string, 0, len(c.pending))
	for id := range c.pending {
		lost = append(lost, id)
	}
	c.mu.Unlock()
	_ = conn.Close()

	// Echoes for sends on this connection will not arrive on the next one.
	c.fail(lost...)
	return true, err
}

// sweepPending fails sends whose echo is older than PendingTimeout.
func (c *Client) sweepPending(done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PendingTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			var expired []string
			c.mu.Lock()
			for id, sentAt := range c.pending {
				if now.Sub(sentAt) >= c.cfg.PendingTimeout {
					expired = append(expired, id)
				}
			}
			c.mu.Unlock()
			c.fail(expired...)
		}
	}
}

// fail marks pending sends as failed and reports each one.
func (c *Client) fail(ids ...string) {
	var failed []Message
	c.mu.Lock()
	for _, id := range ids {
		if _, ok := c.pending[id]; !ok {
			continue
		}
		delete(c.pending, id)
		for i := range c.messages {
			if c.messages[i].ID == id {
				c.messages[i].Pending = false
				c.messages[i].Failed = true
				failed = append(failed, c.messages[i])
				break
			}
		}
	}
	c.mu.Unlock()

	for _, m := range failed {
		c.emit(Event{Kind: EventMessageFailed, Message: m})
	}
}

// oldestPending is the earliest send still waiting for its echo. The server
// answers one connection's frames in order, so an error reply belongs to it.
func (c *Client) oldestPending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.Pending {
			if _, ok := c.pending[m.ID]; ok {
				return m.ID, true
			}
		}
	}
	return "", false
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame models.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Warn("invalid chat frame", slog.String("error", err.Error()))
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame models.Frame) {
	switch frame.Event {
	case models.EventChatMessage:
		var msg models.ChatMessage
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			c.log.Warn("invalid chat message", slog.String("error", err.Error()))
			return
		}
		c.receive(msg)
	case models.EventUserConnected, models.EventUserDisconnected:
		var p models.PresencePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		c.emit(Event{Kind: EventKind(frame.Event), Presence: p})
	case models.EventTyping:
		var p models.TypingPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		c.emit(Event{Kind: EventTyping, Typing: p})
	case models.EventError:
		var reason string
		if err := json.Unmarshal(frame.Data, &reason); err != nil {
			reason = string(frame.Data)
		}
		if id, ok := c.oldestPending(); ok {
			c.fail(id)
		}
		c.emit(Event{Kind: EventError, Error: reason})
	case models.EventMessagesDropped:
		c.emit(Event{Kind: EventError, Error: "Some messages were dropped"})
	}
}

// receive replaces our own copy when msg echoes one of our sends, including a
// late echo for a send already marked failed, and appends it otherwise.
func (c *Client) receive(msg models.ChatMessage) {
	c.mu.Lock()
	entry := Message{ChatMessage: msg}
	delete(c.pending, msg.ID)
	replaced := false
	if msg.SenderID == c.cfg.UserID {
		for i := len(c.messages) - 1; i >= 0; i-- {
			if c.messages[i].ID == msg.ID {
				c.messages[i] = entry
				replaced = true
				break
			}
		}
	}
	if !replaced {
		c.messages = append(c.messages, entry)
	}
	c.mu.Unlock()

	c.emit(Event{Kind: EventMessage, Message: entry})
}

// Send appends content optimistically and writes it to the room. Messages are
// not queued: while disconnected it returns ErrNotConnected.
func (c *Client) Send(content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	conn := c.conn
	if c.status != StatusConnected || conn == nil {
		c.mu.Unlock()
		return Message{}, ErrNotConnected
	}
	msg := Message{
		ChatMessage: models.ChatMessage{
			ID:        uuid.NewString(),
			BookingID: c.cfg.BookingID,
			SenderID:  c.cfg.UserID,
			Content:   content,
			Timestamp: time.Now().UTC(),
			UserType:  c.cfg.UserType,
		},
		Pending: true,
	}
	c.messages = append(c.messages, msg)
	c.pending[msg.ID] = time.Now()
	c.mu.Unlock()

	err := c.write(conn, models.EventChatMessage, models.OutgoingChatMessage{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
		UserType:  msg.UserType,
	})
	if err != nil {
		c.fail(msg.ID)
		msg.Pending, msg.Failed = false, true
		return msg, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

// Typing tells the other participant whether this user is typing.
func (c *Client) Typing(isTyping bool) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.write(conn, models.EventTyping, models.TypingPayload{IsTyping: isTyping})
}

func (c *Client) write(conn *websocket.Conn, event string, data any) error {
	frame, err := models.NewFrame(event, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	c.mu.Unlock()
	if changed {
		c.emit(Event{Kind: EventStatus, Status: s})
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
