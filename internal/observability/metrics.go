package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocketRoomConnections is the gauge of connections per hub.
	WebSocketRoomConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skillswap_websocket_room_connections",
		Help: "Number of WebSocket connections joined to rooms, by hub",
	}, []string{"hub"})

	// OnlineUsers is the gauge of users this instance considers online, by hub.
	OnlineUsers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skillswap_online_users",
		Help: "Users with at least one live socket or a fresh presence heartbeat",
	}, []string{"hub"})

	// MessageThroughput counts realtime events processed per hub and event name.
	MessageThroughput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_message_throughput_total",
		Help: "Total number of realtime events processed",
	}, []string{"hub", "event"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ChatPersistFailures counts chat messages the store rejected.
	ChatPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillswap_chat_persist_failures_total",
		Help: "Total number of chat messages that failed to persist",
	})

	// BookingTransitions counts accepted booking status changes by target status.
	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_booking_transitions_total",
		Help: "Total number of booking status transitions",
	}, []string{"status"})

	// NotificationsCreated counts notifications written, by outcome.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_notifications_total",
		Help: "Notifications handled by the relay",
	}, []string{"outcome"})
)
