package notifications

import (
	"context"
	"log/slog"
	"runtime/debug"

	"skillswap/internal/middleware"
	"skillswap/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	broadcastChannel  = "notifications:broadcast"
	roomChannelPrefix = "chat:booking:"
)

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether publishes reach Redis. A disabled Notifier is a no-op.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID string, payload string) error {
	return n.publish(ctx, UserChannel(userID), payload)
}

// PublishBroadcast sends a notification payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	return n.publish(ctx, broadcastChannel, payload)
}

// PublishRoom sends a chat room envelope to every instance serving the booking.
func (n *Notifier) PublishRoom(ctx context.Context, bookingID string, payload string) error {
	return n.publish(ctx, RoomChannel(bookingID), payload)
}

func (n *Notifier) publish(ctx context.Context, channel, payload string) error {
	if !n.Enabled() {
		return nil
	}
	ctx, span := observability.GetTraceLayer().TracePublish(ctx, channel)
	defer span.End()
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// StartPatternSubscriber subscribes to every user channel plus the broadcast channel.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel string, payload string)) error {
	return n.subscribe(ctx, "notifications", onMessage, userChannelPrefix+"*", broadcastChannel)
}

// StartRoomSubscriber subscribes to every booking chat channel.
func (n *Notifier) StartRoomSubscriber(ctx context.Context, onMessage func(channel string, payload string)) error {
	return n.subscribe(ctx, "chat rooms", onMessage, roomChannelPrefix+"*")
}

func (n *Notifier) subscribe(ctx context.Context, name string, onMessage func(channel, payload string), patterns ...string) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, patterns...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in redis subscriber",
								slog.String("subscriber", name),
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// RoomChannel derives the Redis channel name for a booking's chat room.
func RoomChannel(bookingID string) string {
	return roomChannelPrefix + bookingID
}
