package models

import "encoding/json"

// Realtime event names carried in Frame.Event.
const (
	EventUserConnected    = "user-connected"
	EventChatMessage      = "chat-message"
	EventTyping           = "typing"
	EventUserDisconnected = "user-disconnected"
	EventError            = "error"
	EventNotification     = "notification"
	EventMessagesDropped  = "messages-dropped"
)

// Frame is the JSON envelope of every websocket message: {"event": ..., "data": ...}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data into a Frame and returns the encoded frame.
func NewFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// PresencePayload is the data of user-connected and user-disconnected.
type PresencePayload struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType,omitempty"`
}

// TypingPayload is the data of a typing event. UserID is set on relay only.
type TypingPayload struct {
	UserID   string `json:"userId,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// OutgoingChatMessage is what a client sends as chat-message data.
type OutgoingChatMessage struct {
	ID        string `json:"id,omitempty"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	UserType  string `json:"userType,omitempty"`
}
